package oauth

import (
	"encoding/json"
	"mime"
	"net/http"
	"net/url"
	"strings"

	httperrors "github.com/dropDatabas3/authvital/internal/http/errors"
)

const maxBodyBytes = 64 << 10

// readParams returns the request parameters from a form or JSON body.
// JSON values that are not strings are ignored.
func readParams(w http.ResponseWriter, r *http.Request) (url.Values, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			return nil, httperrors.ErrInvalidBody.WithCause(err)
		}
		out := url.Values{}
		for k, v := range raw {
			if s, ok := v.(string); ok {
				out.Set(k, s)
			}
		}
		return out, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, httperrors.ErrInvalidBody.WithCause(err)
	}
	return r.PostForm, nil
}

// clientCredentials prefers HTTP Basic (client_secret_basic) over the
// body (client_secret_post).
func clientCredentials(r *http.Request, p url.Values) (id, secret string) {
	if u, pw, ok := r.BasicAuth(); ok {
		if v, err := url.QueryUnescape(u); err == nil {
			u = v
		}
		if v, err := url.QueryUnescape(pw); err == nil {
			pw = v
		}
		return u, pw
	}
	return strings.TrimSpace(p.Get("client_id")), p.Get("client_secret")
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodPost {
		return true
	}
	w.Header().Set("Allow", http.MethodPost)
	httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	return false
}

func writeNoStoreJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	httperrors.WriteJSON(w, http.StatusOK, v)
}
