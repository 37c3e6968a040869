package mockbank

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Veraticus/moneyfeed/internal/api"
	"github.com/Veraticus/moneyfeed/internal/auth"
	"github.com/Veraticus/moneyfeed/internal/common"
	"github.com/Veraticus/moneyfeed/internal/model"
	"github.com/Veraticus/moneyfeed/internal/storage"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var problems []string
	if req.Username == "" {
		problems = append(problems, "username should not be empty")
	}
	if req.Password == "" {
		problems = append(problems, "password should not be empty")
	}
	if len(problems) > 0 {
		writeError(w, http.StatusBadRequest, problems...)
		return
	}

	user, hash, err := s.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		slog.Error("Failed to look up user", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		loginsTotal.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	claims := auth.NewClaims(user.ID, user.Username, s.now(), s.tokenTTL)
	token, err := auth.Sign(claims, s.secret)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	loginsTotal.WithLabelValues("accepted").Inc()
	slog.Info("User logged in", "username", user.Username, "user_id", user.ID)
	writeJSON(w, http.StatusOK, api.LoginResponse{AccessToken: token})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.GetUser(r.Context(), userFrom(r.Context()))
	if errors.Is(err, common.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.UserResponse{ID: user.ID, Username: user.Username})
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.store.ListAccounts(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.internalError(w, err)
		return
	}

	resp := api.AccountsResponse{Accounts: make([]api.AccountResponse, 0, len(accounts))}
	for _, a := range accounts {
		balance, err := decimal.NewFromString(a.Balance)
		if err != nil {
			s.internalError(w, err)
			return
		}
		resp.Accounts = append(resp.Accounts, api.AccountResponse{
			ID:      a.ID,
			Name:    a.Name,
			Type:    a.Type,
			Balance: balance,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAccountPayments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid account id")
		return
	}

	account, err := s.store.GetAccount(ctx, accountID)
	if errors.Is(err, common.ErrNotFound) || (err == nil && account.UserID != userFrom(ctx)) {
		writeError(w, http.StatusNotFound, "Account not found")
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}

	q, problems := parsePage(r.URL.Query())
	if len(problems) > 0 {
		writeError(w, http.StatusBadRequest, problems...)
		return
	}

	items, err := s.store.ListAccountPayments(ctx, accountID, q)
	if err != nil {
		s.pageError(w, err)
		return
	}
	balance, err := s.store.Balance(ctx, accountID)
	if err != nil {
		s.internalError(w, err)
		return
	}

	resp := api.PaymentsResponse{
		Transactions:   make([]api.Payment, 0, len(items)),
		CurrentBalance: balance,
	}
	for _, tx := range items {
		resp.Transactions = append(resp.Transactions, api.Payment{
			ID:                api.ID(tx.ID),
			Amount:            tx.Amount,
			Description:       tx.Description,
			Status:            string(tx.Status),
			Category:          tx.Category,
			CreatedAt:         tx.CreatedAt,
			DebitAccountID:    tx.DebitAccountID,
			CreditAccountID:   tx.CreditAccountID,
			InitiatingUserID:  tx.InitiatorUserID,
			CounterpartUserID: tx.OtherUserID,
		})
	}
	pageItems.WithLabelValues(pageMode(q)).Observe(float64(len(items)))
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUserFeed(w http.ResponseWriter, r *http.Request) {
	q, problems := parsePage(r.URL.Query())
	if len(problems) > 0 {
		writeError(w, http.StatusBadRequest, problems...)
		return
	}

	items, err := s.store.ListUserFeed(r.Context(), userFrom(r.Context()), q)
	if err != nil {
		s.pageError(w, err)
		return
	}

	resp := make([]api.FeedItem, 0, len(items))
	for _, tx := range items {
		resp = append(resp, api.FeedItem{
			ID:            api.ID(tx.ID),
			Amount:        tx.Amount,
			Description:   tx.Description,
			Status:        string(tx.Status),
			Type:          string(tx.Direction),
			CreatedAt:     tx.CreatedAt,
			OtherUserID:   tx.OtherUserID,
			OtherUsername: tx.OtherUsername,
		})
	}
	pageItems.WithLabelValues(pageMode(q)).Observe(float64(len(items)))
	writeJSON(w, http.StatusOK, resp)
}

// parsePage reads limit, offset and cursor. Every problem is reported, not just the first.
func parsePage(values url.Values) (storage.PageQuery, []string) {
	q := storage.PageQuery{Limit: model.DefaultPageLimit, Cursor: values.Get("cursor")}
	var problems []string

	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > storage.MaxPageLimit {
			problems = append(problems, fmt.Sprintf("limit must be an integer between 1 and %d", storage.MaxPageLimit))
		}
		q.Limit = limit
	}
	if raw := values.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			problems = append(problems, "offset must not be negative")
		}
		q.Offset = offset
	}
	if q.Cursor != "" && q.Offset != 0 {
		problems = append(problems, "cursor and offset cannot be combined")
	}
	return q, problems
}

func pageMode(q storage.PageQuery) string {
	if q.Cursor != "" {
		return string(model.ModeCursor)
	}
	return string(model.ModeOffset)
}

func (s *Server) pageError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrInvalidPage) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.internalError(w, err)
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	slog.Error("Request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}
