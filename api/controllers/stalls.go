package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/localstall/stallmarket-backend/api/responses"
	"github.com/localstall/stallmarket-backend/api/validators"
	"github.com/localstall/stallmarket-backend/internal/stalls"
	"github.com/localstall/stallmarket-backend/pkg/logger"
)

func stallActor(r *http.Request) (stalls.Actor, error) {
	userID, err := callerID(r)
	if err != nil {
		return stalls.Actor{}, err
	}
	return stalls.Actor{UserID: userID, IsAdmin: callerIsAdmin(r)}, nil
}

// CreateStall opens a pending stall for the caller.
func CreateStall(svc stalls.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input stalls.CreateStallInput
		if err := validators.DecodeJSONBody(w, r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		stall, err := svc.Create(r.Context(), ownerID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, stall)
	}
}

func GetStall(svc stalls.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stallID, err := validators.PathUUID(r, "stallId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		stall, err := svc.Get(r.Context(), stallID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stall)
	}
}

func MyStall(svc stalls.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		stall, err := svc.GetByOwner(r.Context(), ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stall)
	}
}

// ListStalls returns approved stalls for browsing.
func ListStalls(svc stalls.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.PageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListApproved(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func UpdateStall(svc stalls.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := stallActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		stallID, err := validators.PathUUID(r, "stallId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input stalls.UpdateStallInput
		if err := validators.DecodeJSONBody(w, r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		stall, err := svc.Update(r.Context(), actor, stallID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stall)
	}
}

// CloseStall soft closes a stall, hiding it and its listings.
func CloseStall(svc stalls.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := stallActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		stallID, err := validators.PathUUID(r, "stallId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Close(r.Context(), actor, stallID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

// PurgeStall hard deletes a stall and its dependents.
func PurgeStall(svc stalls.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := stallActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		stallID, err := validators.PathUUID(r, "stallId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		report, err := svc.Purge(r.Context(), actor, stallID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

func AdminPendingStalls(svc stalls.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := stallActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.PageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListPending(r.Context(), actor, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func AdminApproveStall(svc stalls.Service, logg *logger.Logger) http.HandlerFunc {
	return moderateStall(svc.Approve, logg)
}

func AdminRejectStall(svc stalls.Service, logg *logger.Logger) http.HandlerFunc {
	return moderateStall(svc.Reject, logg)
}

type moderationFunc func(ctx context.Context, actor stalls.Actor, id uuid.UUID) (*stalls.StallDTO, error)

func moderateStall(moderate moderationFunc, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := stallActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		stallID, err := validators.PathUUID(r, "stallId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		stall, err := moderate(r.Context(), actor, stallID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stall)
	}
}
