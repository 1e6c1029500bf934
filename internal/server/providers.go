package server

import "net/http"

// providersHandler lists configured providers and whether a secret is stored for each.
func providersHandler(logins LoginService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providers := logins.Providers(r.Context())
		if providers == nil {
			providers = []ProviderInfo{}
		}
		writeJSON(r.Context(), w, map[string]any{"providers": providers}, http.StatusOK)
	}
}
