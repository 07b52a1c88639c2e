// Package middleware содержит HTTP middleware сервиса заказов.
package middleware

import (
	"compress/gzip"
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

var compressResponse = chimiddleware.Compress(gzip.DefaultCompression, "application/json", "text/html", "text/plain")

// GzipMiddleware распаковывает тело запроса с Content-Encoding: gzip и сжимает
// JSON и текстовые ответы, если клиент принимает gzip.
func GzipMiddleware(next http.Handler) http.Handler {
	compressed := compressResponse(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.Header.Get("Content-Encoding"), "gzip") {
			zr, err := gzip.NewReader(r.Body)
			if err != nil {
				http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
				return
			}
			defer zr.Close()

			r.Body = zr
			r.Header.Del("Content-Encoding")
			r.ContentLength = -1
		}

		compressed.ServeHTTP(w, r)
	})
}
