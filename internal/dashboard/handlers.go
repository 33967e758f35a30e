package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"

	"formdwatch/internal/chat"
	"formdwatch/internal/edgar"
	"formdwatch/internal/formatter"
	"formdwatch/internal/models"
	"formdwatch/internal/session"
)

type pageData struct {
	Start       string
	End         string
	Status      string
	Error       string
	Caption     string
	Headers     []string
	Filings     []models.Filing
	Chat        session.ChatState
	HasKey      bool
	ChatEnabled bool
}

func (s *Server) buildPage(st *session.State) pageData {
	f := st.Filings()

	requested := f.Requested
	if requested.Start.IsZero() || requested.End.IsZero() {
		requested = s.today()
	}

	data := pageData{
		Start:       requested.StartParam(),
		End:         requested.EndParam(),
		Status:      MsgIdle,
		Error:       f.Error,
		Headers:     formatter.Headers,
		ChatEnabled: s.chatEnabled(),
	}

	if f.Last != nil {
		data.Filings = f.Last.Filings
		data.Status = resultStatus(f.Last)

		if f.Error != "" {
			data.Caption = ShownRangeCaption(f.Last)
		}
	}

	if data.ChatEnabled {
		c := st.Chat()
		data.HasKey = c.APIKey != ""
		c.APIKey = ""
		data.Chat = c
	}

	return data
}

func resultStatus(r *models.FilingResult) string {
	if len(r.Filings) == 0 {
		return MsgNoFilings
	}

	return formatter.Summary(r)
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request, st *session.State) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")

	if err := s.page.Execute(w, s.buildPage(st)); err != nil {
		s.logger.Error("failed to render page", "session", st.ID(), "error", err)
	}
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request, st *session.State) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	dr, err := s.binder.bindFilings(r.PostForm)
	if err != nil {
		s.logger.Info("rejected date range", "session", st.ID(), "error", err)
		st.RecordFetch(st.Filings().Requested, nil, FetchErrorMessage(err))
		redirectHome(w, r)

		return
	}

	if !s.allowFetch(r) {
		s.logger.Info("fetch rate limited", "session", st.ID())
		st.RecordFetch(dr, nil, MsgRateLimited)
		redirectHome(w, r)

		return
	}

	result, err := s.fetcher.FetchFilings(r.Context(), dr)
	if err != nil {
		s.logger.Warn("fetch failed", "session", st.ID(), "range", dr.String(), "kind", edgar.ErrorKind(err), "error", err)
		st.RecordFetch(dr, nil, FetchErrorMessage(err))
	} else {
		st.RecordFetch(dr, result, "")
	}

	redirectHome(w, r)
}

type apiFilingsResponse struct {
	Start     string          `json:"start"`
	End       string          `json:"end"`
	Filings   []models.Filing `json:"filings"`
	Total     int             `json:"total"`
	Truncated bool            `json:"truncated"`
}

type apiError struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) handleAPIFilings(w http.ResponseWriter, r *http.Request) {
	dr, err := s.binder.bindFilings(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: FetchErrorMessage(err), Kind: apiErrorKind(err)})
		return
	}

	result, err := s.fetcher.FetchFilings(r.Context(), dr)
	if err != nil {
		kind := edgar.ErrorKind(err)
		s.logger.Warn("api fetch failed", "range", dr.String(), "kind", kind, "error", err)
		writeJSON(w, apiStatus(err), apiError{Error: FetchErrorMessage(err), Kind: kind})

		return
	}

	writeJSON(w, http.StatusOK, apiFilingsResponse{
		Start:     dr.StartParam(),
		End:       dr.EndParam(),
		Filings:   result.Filings,
		Total:     result.Total,
		Truncated: result.Truncated(),
	})
}

func apiStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidDateRange), errors.Is(err, models.ErrMissingDate):
		return http.StatusBadRequest
	case errors.Is(err, edgar.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, st *session.State) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	in, err := s.binder.bindChat(r.PostForm)
	if err != nil {
		st.UpdateChat(func(c *session.ChatState) { c.Error = "Your message is too long." })
		redirectChat(w, r)

		return
	}

	if in.APIKey != "" {
		st.UpdateChat(func(c *session.ChatState) {
			c.APIKey = in.APIKey
			c.Error = ""
		})

		if in.Prompt == "" {
			redirectChat(w, r)
			return
		}
	}

	if _, err := s.assistant.Send(r.Context(), st, in.Prompt); err != nil {
		msg := chat.UserMessage(err)
		st.UpdateChat(func(c *session.ChatState) { c.Error = msg })
	}

	redirectChat(w, r)
}

func (s *Server) handleChatReset(w http.ResponseWriter, r *http.Request, st *session.State) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	in := s.binder.bindChatReset(r.PostForm)
	s.assistant.Reset(st)

	if in.ForgetKey {
		st.UpdateChat(func(c *session.ChatState) { c.APIKey = "" })
	}

	redirectChat(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.store.Len(),
	})
}

func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func redirectChat(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/#chat", http.StatusSeeOther)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
