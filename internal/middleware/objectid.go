package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ayush/water-tracker/backend/internal/apperror"
	"github.com/ayush/water-tracker/backend/internal/web"
)

// ValidObjectID rejects requests whose URL parameter param is not a
// 24-character hex ObjectID.
func ValidObjectID(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !primitive.IsValidObjectID(chi.URLParam(r, param)) {
				web.Error(w, r, apperror.NewBadRequest("Invalid ID format"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
