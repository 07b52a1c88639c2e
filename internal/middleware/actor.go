package middleware

import (
	"context"
	"net/http"
	"strings"
	"unicode/utf8"
)

// ActorHeader - заголовок с именем инициатора изменений заказа (оператор, сервис).
const ActorHeader = "X-Actor"

const maxActorLength = 100

type contextKey string

const actorKey contextKey = "actor"

// Actor переносит значение заголовка X-Actor в контекст запроса.
// Слишком длинное значение отклоняется с 400.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := strings.TrimSpace(r.Header.Get(ActorHeader))
		if actor == "" {
			next.ServeHTTP(w, r)
			return
		}

		if utf8.RuneCountInString(actor) > maxActorLength {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, actor)))
	})
}

// ActorFromContext возвращает инициатора из контекста запроса.
func ActorFromContext(ctx context.Context) (string, bool) {
	actor, ok := ctx.Value(actorKey).(string)
	return actor, ok && actor != ""
}
