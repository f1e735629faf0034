package service

import (
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/engine"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/health"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/server"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/utils"
)

const apiPrefix = "/api/v1"

type StatusResponse struct {
	Service types.ServiceInfo   `json:"service"`
	Friends types.FriendsStatus `json:"friends"`
}

type CacheResponse struct {
	Entries []types.CacheEntry `json:"entries"`
	Total   int                `json:"total"`
}

type CountResponse struct {
	Added   int `json:"added,omitempty"`
	Removed int `json:"removed,omitempty"`
	Total   int `json:"total"`
}

type TrimRequest struct {
	TTLDays int `json:"ttl_days"`
}

type ManualRequest struct {
	Name       string `json:"name"`
	LocationID uint16 `json:"location_id"`
	Location   string `json:"location"`
}

type ManualView struct {
	Name       string `json:"name"`
	LocationID uint16 `json:"location_id"`
	Location   string `json:"location,omitempty"`
	StableID   uint64 `json:"stable_id,omitempty"`
}

type AllowListRequest struct {
	StableID uint64 `json:"stable_id"`
}

type AllowListResponse struct {
	IDs []uint64 `json:"ids"`
}

type PolicyRequest struct {
	Policy  *types.Policy `json:"policy"`
	TTLDays *int          `json:"ttl_days"`
}

type PolicyResponse struct {
	Policy  types.Policy `json:"policy"`
	TTLDays int          `json:"ttl_days"`
}

type adminHandlers struct {
	info    types.ServiceInfo
	serial  *engine.Serial
	logger  types.Logger
	metrics types.MetricsManager
	health  *health.Manager
}

func (h *adminHandlers) register(router *server.Router) {
	if h.health != nil {
		router.AddPublic(fasthttp.MethodGet, "/health", h.health.Handler())
		router.AddPublic(fasthttp.MethodGet, "/version", h.health.VersionHandler())
	} else {
		router.AddPublic(fasthttp.MethodGet, "/health", h.liveness)
	}

	if h.metrics != nil {
		router.Add(fasthttp.MethodGet, "/metrics", h.metrics.Handler())
	}

	router.Add(fasthttp.MethodGet, apiPrefix+"/status", h.status)

	router.Add(fasthttp.MethodGet, apiPrefix+"/cache", h.listCache)
	router.Add(fasthttp.MethodDelete, apiPrefix+"/cache", h.clearCache)
	router.Add(fasthttp.MethodPost, apiPrefix+"/cache/seed", h.seedNow)
	router.Add(fasthttp.MethodPost, apiPrefix+"/cache/trim", h.trimCache)

	router.Add(fasthttp.MethodGet, apiPrefix+"/manual", h.listManual)
	router.Add(fasthttp.MethodPost, apiPrefix+"/manual", h.addManual)
	router.Add(fasthttp.MethodDelete, apiPrefix+"/manual", h.removeManual)

	router.Add(fasthttp.MethodGet, apiPrefix+"/allowlist", h.listAllowList)
	router.Add(fasthttp.MethodPost, apiPrefix+"/allowlist", h.addAllowList)
	router.Add(fasthttp.MethodDelete, apiPrefix+"/allowlist", h.removeAllowList)

	router.Add(fasthttp.MethodGet, apiPrefix+"/policy", h.getPolicy)
	router.Add(fasthttp.MethodPut, apiPrefix+"/policy", h.putPolicy)

	router.Add(fasthttp.MethodPost, apiPrefix+"/first-run/reset", h.resetFirstRun)
	router.Add(fasthttp.MethodPost, apiPrefix+"/first-run/dismiss", h.dismissFirstRun)
}

func (h *adminHandlers) liveness(ctx *fasthttp.RequestCtx) {
	utils.WriteJSON(ctx, fasthttp.StatusOK, map[string]string{"status": string(types.StatusHealthy)})
}

func (h *adminHandlers) status(ctx *fasthttp.RequestCtx) {
	status := engine.Value(h.serial, func(e *engine.Engine) types.FriendsStatus {
		return e.Status()
	})
	utils.WriteJSON(ctx, fasthttp.StatusOK, StatusResponse{Service: h.info, Friends: status})
}

func (h *adminHandlers) listCache(ctx *fasthttp.RequestCtx) {
	entries := engine.Value(h.serial, func(e *engine.Engine) []types.CacheEntry {
		return e.CacheEntries()
	})
	utils.WriteJSON(ctx, fasthttp.StatusOK, CacheResponse{Entries: entries, Total: len(entries)})
}

func (h *adminHandlers) clearCache(ctx *fasthttp.RequestCtx) {
	removed := engine.Value(h.serial, func(e *engine.Engine) int {
		return e.ClearCache()
	})
	h.logger.Info("Friend cache cleared", zap.Int("removed", removed))
	utils.WriteJSON(ctx, fasthttp.StatusOK, CountResponse{Removed: removed})
}

func (h *adminHandlers) seedNow(ctx *fasthttp.RequestCtx) {
	var response CountResponse
	h.serial.Do(func(e *engine.Engine) {
		response.Added, response.Total = e.ForceSeedNow()
	})
	utils.WriteJSON(ctx, fasthttp.StatusOK, response)
}

// trimCache uses the configured TTL unless the body names one.
func (h *adminHandlers) trimCache(ctx *fasthttp.RequestCtx) {
	var request TrimRequest
	if !decodeOptional(ctx, &request) {
		return
	}
	if request.TTLDays < 0 {
		writeError(ctx, types.Errorf(types.ErrInvalidParameter, "ttl_days must not be negative"))
		return
	}

	var response CountResponse
	h.serial.Do(func(e *engine.Engine) {
		ttl := request.TTLDays
		if ttl == 0 {
			ttl = e.TTLDays()
		}
		response.Removed = e.Trim(ttl)
		response.Total = len(e.CacheEntries())
	})
	utils.WriteJSON(ctx, fasthttp.StatusOK, response)
}

func (h *adminHandlers) listManual(ctx *fasthttp.RequestCtx) {
	views := engine.Value(h.serial, func(e *engine.Engine) []ManualView {
		entries := e.ManualEntries()
		out := make([]ManualView, 0, len(entries))
		for _, entry := range entries {
			label, _ := e.LocationLabel(entry.LocationID)
			out = append(out, ManualView{
				Name:       entry.Name,
				LocationID: entry.LocationID,
				Location:   label,
				StableID:   e.LookupStableID(entry.Name, entry.LocationID),
			})
		}
		return out
	})
	utils.WriteJSON(ctx, fasthttp.StatusOK, views)
}

func (h *adminHandlers) addManual(ctx *fasthttp.RequestCtx) {
	var request ManualRequest
	if !decode(ctx, &request) {
		return
	}

	var err error
	h.serial.Do(func(e *engine.Engine) {
		err = e.AddManual(request.Name, request.locationID(e))
	})
	if err != nil {
		writeError(ctx, err)
		return
	}

	h.logger.Info("Manual friend added", zap.String("name", request.Name))
	utils.WriteJSON(ctx, fasthttp.StatusCreated, map[string]bool{"ok": true})
}

func (h *adminHandlers) removeManual(ctx *fasthttp.RequestCtx) {
	var request ManualRequest
	if !decode(ctx, &request) {
		return
	}

	var err error
	h.serial.Do(func(e *engine.Engine) {
		err = e.RemoveManual(request.Name, request.locationID(e))
	})
	if err != nil {
		writeError(ctx, err)
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusOK, map[string]bool{"ok": true})
}

func (r ManualRequest) locationID(e *engine.Engine) uint16 {
	if r.LocationID != 0 {
		return r.LocationID
	}
	return e.ResolveLocation(r.Location)
}

func (h *adminHandlers) listAllowList(ctx *fasthttp.RequestCtx) {
	ids := engine.Value(h.serial, func(e *engine.Engine) []uint64 {
		return e.AllowListIDs()
	})
	utils.WriteJSON(ctx, fasthttp.StatusOK, AllowListResponse{IDs: ids})
}

func (h *adminHandlers) addAllowList(ctx *fasthttp.RequestCtx) {
	var request AllowListRequest
	if !decode(ctx, &request) {
		return
	}

	var err error
	h.serial.Do(func(e *engine.Engine) {
		err = e.AddAllowListID(request.StableID)
	})
	if err != nil {
		writeError(ctx, err)
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusCreated, map[string]bool{"ok": true})
}

func (h *adminHandlers) removeAllowList(ctx *fasthttp.RequestCtx) {
	var request AllowListRequest
	if !decode(ctx, &request) {
		return
	}

	removed := engine.Value(h.serial, func(e *engine.Engine) bool {
		return e.RemoveAllowListID(request.StableID)
	})
	if !removed {
		utils.WriteError(ctx, fasthttp.StatusNotFound, types.Errorf(types.ErrInvalidStableID, "%d is not on the allow list", request.StableID))
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusOK, map[string]bool{"ok": true})
}

func (h *adminHandlers) getPolicy(ctx *fasthttp.RequestCtx) {
	utils.WriteJSON(ctx, fasthttp.StatusOK, engine.Value(h.serial, policyResponse))
}

func (h *adminHandlers) putPolicy(ctx *fasthttp.RequestCtx) {
	var request PolicyRequest
	if !decode(ctx, &request) {
		return
	}
	if request.TTLDays != nil && *request.TTLDays < 0 {
		writeError(ctx, types.Errorf(types.ErrInvalidParameter, "ttl_days must not be negative"))
		return
	}

	response := engine.Value(h.serial, func(e *engine.Engine) PolicyResponse {
		if request.Policy != nil {
			e.SetPolicy(*request.Policy)
		}
		if request.TTLDays != nil {
			e.SetTTLDays(*request.TTLDays)
		}
		return policyResponse(e)
	})

	h.logger.Info("Friend policy updated", zap.Any("policy", response.Policy), zap.Int("ttl_days", response.TTLDays))
	utils.WriteJSON(ctx, fasthttp.StatusOK, response)
}

func policyResponse(e *engine.Engine) PolicyResponse {
	return PolicyResponse{Policy: e.Policy(), TTLDays: e.TTLDays()}
}

func (h *adminHandlers) resetFirstRun(ctx *fasthttp.RequestCtx) {
	h.serial.Do(func(e *engine.Engine) { e.ResetFirstRunNotice() })
	utils.WriteJSON(ctx, fasthttp.StatusOK, map[string]bool{"show_first_run_notice": true})
}

func (h *adminHandlers) dismissFirstRun(ctx *fasthttp.RequestCtx) {
	h.serial.Do(func(e *engine.Engine) { e.DismissFirstRunNotice() })
	utils.WriteJSON(ctx, fasthttp.StatusOK, map[string]bool{"show_first_run_notice": false})
}

func decode[T any](ctx *fasthttp.RequestCtx, target *T) bool {
	if len(ctx.PostBody()) == 0 {
		writeError(ctx, types.Errorf(types.ErrBadRequest, "request body is empty"))
		return false
	}
	return decodeOptional(ctx, target)
}

func decodeOptional[T any](ctx *fasthttp.RequestCtx, target *T) bool {
	body := ctx.PostBody()
	if len(body) == 0 {
		return true
	}
	if err := utils.Unmarshal(body, target); err != nil {
		writeError(ctx, types.Errorf(types.ErrBadRequest, "%v", err))
		return false
	}
	return true
}

func writeError(ctx *fasthttp.RequestCtx, err error) {
	utils.WriteError(ctx, errorStatus(err), err)
}

func errorStatus(err error) int {
	switch {
	case types.IsError(err, types.ErrBadRequest),
		types.IsError(err, types.ErrInvalidParameter),
		types.IsError(err, types.ErrEmptyName),
		types.IsError(err, types.ErrUnknownLocation),
		types.IsError(err, types.ErrInvalidStableID):
		return fasthttp.StatusBadRequest
	case types.IsError(err, types.ErrManualEntryAbsent),
		types.IsError(err, types.ErrEntityNotFound):
		return fasthttp.StatusNotFound
	case types.IsError(err, types.ErrManualEntryExists):
		return fasthttp.StatusConflict
	default:
		return fasthttp.StatusInternalServerError
	}
}
