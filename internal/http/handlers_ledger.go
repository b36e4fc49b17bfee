package http

import (
	"net/http"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

// Wallets

func (s *Server) handleListWallets(w http.ResponseWriter, r *http.Request) {
	wallets, err := s.app.Wallets.List(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	respond(w, http.StatusOK, wallets)
}

func (s *Server) handleCreateWallet(w http.ResponseWriter, r *http.Request) {
	var req walletRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	wallet, err := s.app.Wallets.Create(r.Context(), userID(r), req.input())
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	respond(w, http.StatusCreated, wallet)
}

func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	wallet, err := s.app.Wallets.Get(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	respond(w, http.StatusOK, wallet)
}

func (s *Server) handleRenameWallet(w http.ResponseWriter, r *http.Request) {
	var req walletRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	wallet, err := s.app.Wallets.Rename(r.Context(), userID(r), r.PathValue("id"), req.input())
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	respond(w, http.StatusOK, wallet)
}

func (s *Server) handleDeleteWallet(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Wallets.Delete(r.Context(), userID(r), r.PathValue("id")); err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type walletAudit struct {
	WalletID   string     `json:"wallet_id"`
	Stored     core.Money `json:"stored"`
	Computed   core.Money `json:"computed"`
	Consistent bool       `json:"consistent"`
}

func (s *Server) handleAuditWallet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	stored, computed, err := s.app.Ledger.VerifyBalance(r.Context(), userID(r), id)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	respond(w, http.StatusOK, walletAudit{
		WalletID:   id,
		Stored:     stored,
		Computed:   computed,
		Consistent: stored == computed,
	})
}

// Categories

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.app.Categories.List(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	respond(w, http.StatusOK, cats)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	cat, err := s.app.Categories.Create(r.Context(), userID(r), req.input())
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	respond(w, http.StatusCreated, cat)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	cat, err := s.app.Categories.Update(r.Context(), userID(r), r.PathValue("id"), req.input())
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	respond(w, http.StatusOK, cat)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Categories.Delete(r.Context(), userID(r), r.PathValue("id")); err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCategoryChildren(w http.ResponseWriter, r *http.Request) {
	cats, err := s.app.Categories.Children(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	respond(w, http.StatusOK, cats)
}

// Transactions

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := ParseTransactionFilter(r.URL.Query())
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	txs, err := s.app.Ledger.List(r.Context(), userID(r), f)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	respond(w, http.StatusOK, txs)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	tx, err := s.app.Ledger.Create(r.Context(), userID(r), req.input())
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	respond(w, http.StatusCreated, tx)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.app.Ledger.Get(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	respond(w, http.StatusOK, tx)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	tx, err := s.app.Ledger.Update(r.Context(), userID(r), r.PathValue("id"), req.input())
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	respond(w, http.StatusOK, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Ledger.Delete(r.Context(), userID(r), r.PathValue("id")); err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Budgets

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := s.app.Budgets.List(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	respond(w, http.StatusOK, budgets)
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	b, err := s.app.Budgets.Create(r.Context(), userID(r), req.input())
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	respond(w, http.StatusCreated, b)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	p, err := s.app.Budgets.Progress(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	respond(w, http.StatusOK, p)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	b, err := s.app.Budgets.Update(r.Context(), userID(r), r.PathValue("id"), req.input())
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	respond(w, http.StatusOK, b)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Budgets.Delete(r.Context(), userID(r), r.PathValue("id")); err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
