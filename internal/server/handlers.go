package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/campaign"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/models"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/visits"
)

type rpcRequest struct {
	Action string `json:"action"`
}

// handleRPC answers the runtime messages UIs send to the background.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := decode(r, &req); err != nil {
		errorWithCode(w, http.StatusBadRequest, err.Error())
		return
	}
	switch req.Action {
	case "getVisitStats":
		data, err := visits.Stats(r.Context(), s.st)
		if err != nil {
			writeError(w, err)
			return
		}
		okJSON(w, data)
	default:
		errorWithCode(w, http.StatusBadRequest, fmt.Sprintf("unknown action %q", req.Action))
	}
}

// campaign

type startRequest struct {
	Entries  []models.QueueEntry `json:"entries"`
	FromLogs bool                `json:"fromLogs"`
	Delay    float64             `json:"delay"`
}

func (s *Server) campaignStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decode(r, &req); err != nil {
		errorWithCode(w, http.StatusBadRequest, err.Error())
		return
	}
	entries := req.Entries
	if req.FromLogs {
		logs, err := s.rec.Logs(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		entries = campaign.EntriesFromLogs(logs, req.Delay)
	}
	if err := s.sched.Start(r.Context(), entries); err != nil {
		writeError(w, err)
		return
	}
	s.campaignStatus(w, r)
}

func (s *Server) campaignStop(w http.ResponseWriter, r *http.Request) {
	if err := s.sched.Stop(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	s.campaignStatus(w, r)
}

func (s *Server) campaignStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.sched.Status(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	okJSON(w, st)
}

// visits

func (s *Server) visitStats(w http.ResponseWriter, r *http.Request) {
	data, err := visits.Stats(r.Context(), s.st)
	if err != nil {
		writeError(w, err)
		return
	}
	okJSON(w, data)
}

func (s *Server) visitTop(w http.ResponseWriter, r *http.Request) {
	top, err := visits.Top(r.Context(), s.st, queryInt(r, "n", 10))
	if err != nil {
		writeError(w, err)
		return
	}
	okJSON(w, top)
}

func attachment(w http.ResponseWriter, prefix string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s-%d.csv"`, prefix, time.Now().UnixMilli()))
}

func (s *Server) visitCSV(w http.ResponseWriter, r *http.Request) {
	attachment(w, "visit-history")
	if err := s.rec.ExportVisits(r.Context(), w); err != nil {
		s.log.Warn("export visits failed", "err", err)
	}
}

// logs

func (s *Server) listLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.rec.Logs(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	okJSON(w, logs)
}

type repliedRequest struct {
	Replied bool `json:"replied"`
}

func (s *Server) patchLog(w http.ResponseWriter, r *http.Request) {
	idx, err := pathInt(r, "index")
	if err != nil {
		errorWithCode(w, http.StatusBadRequest, err.Error())
		return
	}
	var req repliedRequest
	if err := decode(r, &req); err != nil {
		errorWithCode(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.rec.SetReplied(r.Context(), idx, req.Replied); err != nil {
		writeError(w, err)
		return
	}
	s.logStats(w, r)
}

func (s *Server) logCSV(w http.ResponseWriter, r *http.Request) {
	attachment(w, "linkedin-logs")
	if err := s.rec.ExportLogs(r.Context(), w); err != nil {
		s.log.Warn("export logs failed", "err", err)
	}
}

func (s *Server) logStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.rec.LogStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	okJSON(w, st)
}

// clients and templates

type clientsResponse struct {
	Clients      []models.Client `json:"clients"`
	ActiveClient string          `json:"activeClient,omitempty"`
}

func (s *Server) listClients(w http.ResponseWriter, r *http.Request) {
	clients, err := s.rec.Clients(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	resp := clientsResponse{Clients: clients}
	if c, err := s.rec.ActiveClient(r.Context()); err == nil {
		resp.ActiveClient = c.ID
	}
	okJSON(w, resp)
}

type nameRequest struct {
	Name string `json:"name"`
}

func (s *Server) addClient(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decode(r, &req); err != nil {
		errorWithCode(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := s.rec.AddClient(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

type idRequest struct {
	ID string `json:"id"`
}

func (s *Server) setActiveClient(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := decode(r, &req); err != nil {
		errorWithCode(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.rec.SetActiveClient(r.Context(), req.ID); err != nil {
		writeError(w, err)
		return
	}
	s.listClients(w, r)
}

func (s *Server) addTemplate(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decode(r, &req); err != nil {
		errorWithCode(w, http.StatusBadRequest, err.Error())
		return
	}
	idx, err := s.rec.AddTemplate(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"index": idx})
}

type templateRequest struct {
	Name    *string `json:"name"`
	Content *string `json:"content"`
}

// updateTemplate renames and/or saves content; absent fields are left alone.
func (s *Server) updateTemplate(w http.ResponseWriter, r *http.Request) {
	idx, err := pathInt(r, "index")
	if err != nil {
		errorWithCode(w, http.StatusBadRequest, err.Error())
		return
	}
	var req templateRequest
	if err := decode(r, &req); err != nil {
		errorWithCode(w, http.StatusBadRequest, err.Error())
		return
	}
	id := chi.URLParam(r, "id")
	if req.Name != nil {
		if err := s.rec.RenameTemplate(r.Context(), id, idx, *req.Name); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Content != nil {
		if err := s.rec.SaveTemplate(r.Context(), id, idx, *req.Content); err != nil {
			writeError(w, err)
			return
		}
	}
	s.listClients(w, r)
}

func (s *Server) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	idx, err := pathInt(r, "index")
	if err != nil {
		errorWithCode(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.rec.DeleteTemplate(r.Context(), chi.URLParam(r, "id"), idx); err != nil {
		writeError(w, err)
		return
	}
	s.listClients(w, r)
}

type indexRequest struct {
	Index int `json:"index"`
}

func (s *Server) setDefaultTemplate(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := decode(r, &req); err != nil {
		errorWithCode(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.rec.SetDefaultTemplate(r.Context(), chi.URLParam(r, "id"), req.Index); err != nil {
		writeError(w, err)
		return
	}
	s.listClients(w, r)
}

// tags and notes

func (s *Server) listTags(w http.ResponseWriter, r *http.Request) {
	if url := r.URL.Query().Get("url"); url != "" {
		tags, err := s.rec.Tags(r.Context(), url)
		if err != nil {
			writeError(w, err)
			return
		}
		if tags == nil {
			tags = []string{}
		}
		okJSON(w, tags)
		return
	}
	all, err := s.rec.AllTags(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	okJSON(w, all)
}

type tagRequest struct {
	URL string `json:"url"`
	Tag string `json:"tag"`
}

func (s *Server) addTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := decode(r, &req); err != nil {
		errorWithCode(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		errorWithCode(w, http.StatusBadRequest, "url is required")
		return
	}
	if err := s.rec.AddTag(r.Context(), req.URL, req.Tag); err != nil {
		writeError(w, err)
		return
	}
	tags, err := s.rec.Tags(r.Context(), req.URL)
	if err != nil {
		writeError(w, err)
		return
	}
	okJSON(w, tags)
}

type noteRequest struct {
	URL  string `json:"url"`
	Note string `json:"note"`
}

func (s *Server) getNote(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	note, err := s.rec.Note(r.Context(), url)
	if err != nil {
		writeError(w, err)
		return
	}
	okJSON(w, noteRequest{URL: url, Note: note})
}

func (s *Server) setNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := decode(r, &req); err != nil {
		errorWithCode(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		errorWithCode(w, http.StatusBadRequest, "url is required")
		return
	}
	if err := s.rec.SetNote(r.Context(), req.URL, req.Note); err != nil {
		writeError(w, err)
		return
	}
	okJSON(w, req)
}

// preview

type previewRequest struct {
	Template string `json:"template"`
}

func (s *Server) preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decode(r, &req); err != nil {
		errorWithCode(w, http.StatusBadRequest, err.Error())
		return
	}
	text, err := s.rec.Preview(r.Context(), req.Template)
	if err != nil {
		writeError(w, err)
		return
	}
	okJSON(w, map[string]string{"text": text})
}
