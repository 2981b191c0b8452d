package api

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"price-registry/internal/commission"
	"price-registry/internal/ident"
	"price-registry/internal/registry"
	"price-registry/internal/storage"
)

// Roles

func (s *Server) handleGetRoles() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roles := s.reg.Roles()
		writeJSON(w, http.StatusOK, rolesResponse{
			Admin:     roles.Admin,
			Updater:   roles.Updater,
			Reporters: nonNil(roles.Reporters),
		})
	}
}

// handleSetUpdater accepts any id. An empty id unsets the updater; ids
// that parse as identifiers are stored in normalized form.
func (s *Server) handleSetUpdater() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := caller(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var body identityBody
		if err := decodeBody(w, r, &body); err != nil {
			s.writeError(w, r, err)
			return
		}
		id := body.ID
		if id != "" {
			if n, err := ident.NormalizeSigner(id); err == nil {
				id = n
			}
		}
		if err := s.reg.SetUpdater(r.Context(), c, id); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleAddReporter() http.HandlerFunc {
	return s.identityMutation(s.reg.AddReporter)
}

func (s *Server) identityMutation(fn func(ctx context.Context, caller, id string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := caller(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var body identityBody
		if err := decodeBody(w, r, &body); err != nil {
			s.writeError(w, r, err)
			return
		}
		id, err := ident.NormalizeSigner(body.ID)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("id: %w", err))
			return
		}
		if err := fn(r.Context(), c, id); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleRemoveReporter() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := caller(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		id, err := ident.NormalizeSigner(mux.Vars(r)["id"])
		if err != nil {
			s.writeError(w, r, fmt.Errorf("id: %w", err))
			return
		}
		if err := s.reg.RemoveReporter(r.Context(), c, id); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// Prices

func (s *Server) handleUpdatePrice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := caller(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		asset, err := assetVar(r, "asset")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var body priceBody
		if err := decodeBody(w, r, &body); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := s.reg.UpdatePrice(r.Context(), c, asset, body.Timestamp, body.Price); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleUpdatePrices() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := caller(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var body pricesBody
		if err := decodeBody(w, r, &body); err != nil {
			s.writeError(w, r, err)
			return
		}
		assets, err := ident.NormalizeAll(body.Assets, ident.NormalizeAsset)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("assets: %w", err))
			return
		}
		if err := s.reg.UpdatePrices(r.Context(), c, assets, body.Timestamps, body.Prices); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleGetPrice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asset, err := assetVar(r, "asset")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		q, err := s.reg.GetPrice(r.Context(), asset)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toPrice(q))
	}
}

func (s *Server) handleGetPrices() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assets, err := assetsQuery(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		quotes, err := s.reg.GetPrices(r.Context(), assets)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		out := make([]priceResponse, len(quotes))
		for i, q := range quotes {
			out[i] = toPrice(q)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleGetHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.history == nil {
			writeJSONError(w, http.StatusServiceUnavailable, CodeFeatureDisabled, "price history is not configured")
			return
		}
		asset, err := assetVar(r, "asset")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		from, err := uintQuery(r, "from", 0)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		to, err := uintQuery(r, "to", math.MaxUint64)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if from > to {
			s.writeError(w, r, fmt.Errorf("%w: from %d is after to %d", registry.ErrInvalidInput, from, to))
			return
		}

		points, err := s.history.GetByTimeRange(r.Context(), asset, from, to)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp := historyResponse{Asset: asset, From: from, To: to, Points: make([]historyPoint, len(points))}
		for i, p := range points {
			resp.Points[i] = historyPoint{
				Kind:       p.Kind,
				Reporter:   p.Reporter,
				Timestamp:  p.Timestamp,
				Price:      p.Price,
				RecordedAt: p.RecordedAt,
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleRemoveFiat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := caller(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		asset, err := assetVar(r, "asset")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := s.reg.RemoveTokenFromFiats(r.Context(), c, asset); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// Tokens

func (s *Server) handleList(list func() []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, listResponse{Assets: nonNil(list())})
	}
}

func (s *Server) handleGetTokenData() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asset, err := assetVar(r, "asset")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		skip, err := boolQuery(r, "skipNonFiatPrice")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		d, err := s.reg.GetTokenData(r.Context(), asset, skip)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toTokenData(d))
	}
}

func (s *Server) handleGetTokensData() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assets, err := assetsQuery(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		skip, err := boolQuery(r, "skipNonFiatPrice")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		data, err := s.reg.GetTokensData(r.Context(), assets, skip)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		out := make([]tokenDataResponse, len(data))
		for i, d := range data {
			out[i] = toTokenData(d)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleScalar(get func(asset string) int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asset, err := assetVar(r, "asset")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		v := get(asset)
		writeJSON(w, http.StatusOK, scaledResponse{Asset: asset, Value: v, Ratio: commission.Ratio(v)})
	}
}

func (s *Server) handlePercent(get func(asset string) uint64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asset, err := assetVar(r, "asset")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		v := get(asset)
		writeJSON(w, http.StatusOK, percentResponse{Asset: asset, Value: v, Ratio: commission.PercentRatio(v)})
	}
}

func (s *Server) handleSetTransferFee() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := caller(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		asset, err := assetVar(r, "asset")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var body transferFeeBody
		if err := decodeBody(w, r, &body); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := s.reg.SetTokenTransferFee(r.Context(), c, asset, body.Fee); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// Settings and bulk commission updates

func (s *Server) handleGetSettings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, toSettings(s.reg.GetSettings()))
	}
}

func (s *Server) handleUpdateSettings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := caller(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var body settingsBody
		if err := decodeBody(w, r, &body); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := s.reg.UpdateDefaultSettings(r.Context(), c, body.domain()); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleUpdateCommissions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := caller(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var body registry.CommissionUpdate
		if err := decodeBody(w, r, &body); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := normalizeCommissionUpdate(&body); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := s.reg.UpdateCommissions(r.Context(), c, body); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleUpdateReferralPercents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := caller(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var body registry.ReferralUpdate
		if err := decodeBody(w, r, &body); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := normalizeReferralUpdate(&body); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := s.reg.UpdateReferralPercents(r.Context(), c, body); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleUpdateAllCommissions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := caller(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var body allCommissionsBody
		if err := decodeBody(w, r, &body); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := normalizeCommissionUpdate(&body.Commissions); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := normalizeReferralUpdate(&body.Referrals); err != nil {
			s.writeError(w, r, err)
			return
		}
		err = s.reg.UpdateAllCommissions(r.Context(), c, body.Settings.domain(), body.Commissions, body.Referrals)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func normalizeCommissionUpdate(u *registry.CommissionUpdate) (err error) {
	if u.ToCustom, err = ident.NormalizeAll(u.ToCustom, ident.NormalizeAsset); err != nil {
		return fmt.Errorf("toCustom: %w", err)
	}
	if u.ToDefault, err = ident.NormalizeAll(u.ToDefault, ident.NormalizeAsset); err != nil {
		return fmt.Errorf("toDefault: %w", err)
	}
	if u.Changed, err = ident.NormalizeAll(u.Changed, ident.NormalizeAsset); err != nil {
		return fmt.Errorf("changed: %w", err)
	}
	return nil
}

func normalizeReferralUpdate(u *registry.ReferralUpdate) (err error) {
	if u.ToCustom, err = ident.NormalizeAll(u.ToCustom, ident.NormalizeAsset); err != nil {
		return fmt.Errorf("toCustom: %w", err)
	}
	if u.ToDefault, err = ident.NormalizeAll(u.ToDefault, ident.NormalizeAsset); err != nil {
		return fmt.Errorf("toDefault: %w", err)
	}
	if u.Changed, err = ident.NormalizeAll(u.Changed, ident.NormalizeAsset); err != nil {
		return fmt.Errorf("changed: %w", err)
	}
	return nil
}

// Reports and consensus

func (s *Server) handleReport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := caller(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		asset, err := assetVar(r, "asset")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var body priceBody
		if err := decodeBody(w, r, &body); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := s.reg.Report(r.Context(), c, asset, body.Timestamp, body.Price); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleGetReport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asset, err := assetVar(r, "asset")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		reporter, err := ident.NormalizeSigner(mux.Vars(r)["reporter"])
		if err != nil {
			s.writeError(w, r, fmt.Errorf("reporter: %w", err))
			return
		}
		rep, ok := s.reg.GetReport(asset, reporter)
		if !ok {
			s.writeError(w, r, fmt.Errorf("%w: no report from %s for %s", storage.ErrNotFound, reporter, asset))
			return
		}
		writeJSON(w, http.StatusOK, reportResponse{
			Asset:     rep.Asset,
			Reporter:  rep.Reporter,
			Timestamp: rep.Timestamp,
			Price:     rep.Price,
		})
	}
}

func (s *Server) handleGetConsensus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asset, err := assetVar(r, "asset")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		res, err := s.reg.Consensus(asset)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toConsensus(asset, res))
	}
}

// Asset info passthrough

func (s *Server) handleDecimals() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.assets == nil {
			writeJSONError(w, http.StatusServiceUnavailable, CodeFeatureDisabled, "asset info is not configured")
			return
		}
		asset, err := assetVar(r, "asset")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		d, err := s.assets.Decimals(r.Context(), asset)
		if err != nil {
			s.writeUpstreamError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"asset": asset, "decimals": d})
	}
}

func (s *Server) handleBalance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.assets == nil {
			writeJSONError(w, http.StatusServiceUnavailable, CodeFeatureDisabled, "asset info is not configured")
			return
		}
		asset, err := assetVar(r, "asset")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		holder, err := assetVar(r, "holder")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		bal, err := s.assets.BalanceOf(r.Context(), asset, holder)
		if err != nil {
			s.writeUpstreamError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"asset":   asset,
			"holder":  holder,
			"balance": bal.String(),
		})
	}
}

func (s *Server) writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	if status, _ := classify(err); status != http.StatusInternalServerError {
		s.writeError(w, r, err)
		return
	}
	s.logger.Warn("asset info failed", zap.String("path", r.URL.Path), zap.Error(err))
	writeJSONError(w, http.StatusBadGateway, CodeUpstreamError, err.Error())
}

// Query helpers

func assetsQuery(r *http.Request) ([]string, error) {
	raw := r.URL.Query().Get("assets")
	if raw == "" {
		return nil, fmt.Errorf("%w: assets query parameter is required", registry.ErrInvalidInput)
	}
	parts := strings.Split(raw, ",")
	assets, err := ident.NormalizeAll(parts, ident.NormalizeAsset)
	if err != nil {
		return nil, fmt.Errorf("assets: %w", err)
	}
	return assets, nil
}

func uintQuery(r *http.Request, name string, def uint64) (uint64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", registry.ErrInvalidInput, name, errors.Unwrap(err))
	}
	return v, nil
}

func boolQuery(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q is not a boolean", registry.ErrInvalidInput, name, raw)
	}
	return v, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
