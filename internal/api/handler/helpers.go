package handler

import (
	"net/http"
	"strconv"

	"innovate_api/internal/api/middleware"
	"innovate_api/internal/app/service"
	"innovate_api/internal/common"
)

// currentActor writes a 401 and reports false when the request carries no caller.
func currentActor(w http.ResponseWriter, r *http.Request) (service.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok || actor.UserID == "" {
		common.RespondWithDomainError(w, common.ErrUnauthorized)
		return service.Actor{}, false
	}
	return actor, true
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := common.DecodeJSON(r, dst); err != nil {
		common.RespondWithDomainError(w, err)
		return false
	}
	return true
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}
