// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

// Package i18n propagates the request's preferred language so generated
// chat titles match the language the user writes in.
package i18n

import (
	"context"
	"net/http"
	"strings"
)

type userLanguageContextKey struct{}

var userLanguageContextKeyInstance = userLanguageContextKey{}

// Middleware stores the request's most-preferred Accept-Language tag on
// the context.
func Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			lng := r.Header.Get("Accept-Language")
			lng, _, _ = strings.Cut(lng, ",")
			lng, _, _ = strings.Cut(lng, ";")
			lng = strings.TrimSpace(lng)

			if lng != "" && lng != "*" {
				ctx = context.WithValue(ctx, userLanguageContextKeyInstance, lng)
				r = r.WithContext(ctx)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// UserLanguage returns the language tag stored by Middleware, or empty if
// the request did not carry one.
func UserLanguage(ctx context.Context) string {
	if lng, ok := ctx.Value(userLanguageContextKeyInstance).(string); ok {
		return lng
	}
	return ""
}
