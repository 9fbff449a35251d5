package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/BradenHooton/kafedra/internal/security"
	"github.com/BradenHooton/kafedra/internal/services"
	pkghttp "github.com/BradenHooton/kafedra/pkg/http"
)

var errBodyTooLarge = errors.New("request body too large")

// decodeJSON decodes a single JSON object from the request body
func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errBodyTooLarge
		}
		return err
	}
	return nil
}

// writeDecodeError answers a body that could not be decoded
func writeDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		pkghttp.WritePayloadTooLarge(w, "request body too large")
		return
	}
	pkghttp.WriteBadRequest(w, "invalid request body")
}

// requestMeta captures the request context recorded with security events
func requestMeta(r *http.Request, ipConfig *pkghttp.IPConfig) services.RequestMeta {
	return services.RequestMeta{
		IP:        pkghttp.ExtractClientIP(r, ipConfig),
		UserAgent: r.UserAgent(),
		Path:      r.URL.Path,
	}
}

func eventData(meta services.RequestMeta, details string) security.EventData {
	return security.EventData{
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Path:      meta.Path,
		Details:   details,
	}
}

// screenBots logs automated clients. A filled honeypot is reported as true
// and must be rejected; a bot user agent is only logged.
func screenBots(events security.EventSink, meta services.RequestMeta, honeypot string) bool {
	if security.HoneypotTripped(honeypot) {
		events.Log(security.EventBotDetected, eventData(meta, "honeypot field filled"))
		return true
	}
	if security.IsBotUserAgent(meta.UserAgent) {
		events.Log(security.EventBotDetected, eventData(meta, "bot user agent"))
	}
	return false
}
