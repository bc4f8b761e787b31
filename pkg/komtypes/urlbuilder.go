package komtypes

import (
	"strings"
)

// Builds URLs for the appliance REST API from a base URL like
// "http://komero.local" (no trailing slash).
type RestClientUrlBuilder struct {
	baseUrl string
}

func NewRestClientUrlBuilder(baseUrl string) *RestClientUrlBuilder {
	return &RestClientUrlBuilder{strings.TrimSuffix(baseUrl, "/")}
}

func (r *RestClientUrlBuilder) GetStatus() string {
	return r.baseUrl + "/status"
}

func (r *RestClientUrlBuilder) StorageInventory() string {
	return r.baseUrl + "/api/storage/inventory"
}

func (r *RestClientUrlBuilder) MdraidStatus() string {
	return r.baseUrl + "/api/storage/mdraid-status"
}

func (r *RestClientUrlBuilder) MdraidPrechecks() string {
	return r.baseUrl + "/api/storage/mdraid-prechecks"
}

func (r *RestClientUrlBuilder) MdraidAddDisk() string {
	return r.baseUrl + "/api/storage/mdraid-add-disk"
}

func (r *RestClientUrlBuilder) MdraidOptimizeAndAdd() string {
	return r.baseUrl + "/api/storage/mdraid-optimize-and-add"
}

func (r *RestClientUrlBuilder) MdraidStopResync() string {
	return r.baseUrl + "/api/storage/mdraid-stop-resync"
}

// push channel endpoint, with "http(s)" swapped for "ws(s)"
func (r *RestClientUrlBuilder) PushChannel() string {
	wsBase := r.baseUrl
	if strings.HasPrefix(wsBase, "https://") {
		wsBase = "wss://" + strings.TrimPrefix(wsBase, "https://")
	} else if strings.HasPrefix(wsBase, "http://") {
		wsBase = "ws://" + strings.TrimPrefix(wsBase, "http://")
	}

	return wsBase + "/api/events"
}
