package server

import (
	"encoding/json"
	"net/http"

	"github.com/jonathan/article-engine/internal/types"
)

// handleIssueToken exchanges the operator secret for a bearer token. There
// are no user accounts; one shared secret gates the whole admin API.
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req types.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	if !s.secrets.VerifySecret(req.Secret) {
		err := &ErrInvalidSecret{}
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	token, err := s.jwtService.GenerateToken("operator")
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]string{"token": token})
}
