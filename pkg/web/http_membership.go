package web

import (
	"net/http"
)

type membershipHandler struct {
	status StatusProvider
}

// membership reports the applied membership, the last candidate and the outcome of the last reconciliation.
func (mh *membershipHandler) membership(resp http.ResponseWriter, req *http.Request) {
	writeJSON(resp, http.StatusOK, mh.status.Status())
}
