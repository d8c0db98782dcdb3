package httpapi

import (
	"encoding/json"
	"net/http"
)

const serviceName = "martad"

func VersionHandler(version string) http.HandlerFunc {
	if version == "" {
		version = "dev"
	}
	body, _ := json.Marshal(map[string]string{"name": serviceName, "version": version})
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}
}
