// Package device classifies the client from its User-Agent so the scanner
// knows whether presence arrives as pointer hover or touch.
package device

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"veritas/pkg/requestcontext"
)

// Classify returns the device class and a "Browser on OS" label.
func Classify(userAgent string) (requestcontext.DeviceClass, string) {
	if userAgent == "" {
		return requestcontext.DevicePointer, "Unknown Device"
	}
	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}

	class := requestcontext.DevicePointer
	host := ua.OS()
	if ua.Mobile() {
		class = requestcontext.DeviceTouch
		if platform := ua.Platform(); platform != "" {
			host = platform
		}
	}
	if host == "" {
		host = "Unknown OS"
	}
	return class, strings.TrimSpace(browser + " on " + host)
}

// Device stores the device class and label. It must run after the metadata
// middleware, which extracts the User-Agent.
func Device(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		class, label := Classify(requestcontext.UserAgent(ctx))
		next.ServeHTTP(w, r.WithContext(requestcontext.WithDevice(ctx, class, label)))
	})
}
