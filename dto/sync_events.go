package dto

import "time"

type SyncEmailAccount struct {
	AccountID string `json:"accountId"`
	// set when a running pass re-dispatches itself together with the owner of the held lock
	Continuation bool      `json:"continuation"`
	LockOwner    string    `json:"lockOwner,omitempty"`
	NotBefore    time.Time `json:"notBefore"`
}

type FirstSyncEmailAccount struct {
	AccountID string `json:"accountId"`
	// owner of the first sync lock taken by whoever dispatched the task
	LockOwner string    `json:"lockOwner,omitempty"`
	NotBefore time.Time `json:"notBefore"`
}
