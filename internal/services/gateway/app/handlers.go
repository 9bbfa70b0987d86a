package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pumpspares/src_project/internal/auth"
	"github.com/pumpspares/src_project/internal/wizard"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError mappa gli errori del wizard sui codici HTTP.
func writeError(w http.ResponseWriter, err error) {
	var verr *wizard.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "validation failed", Fields: verr.Fields})
	case errors.Is(err, ErrWizardNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, wizard.ErrWrongStep), errors.Is(err, wizard.ErrSHNotComputed),
		errors.Is(err, wizard.ErrBusy), errors.Is(err, wizard.ErrSuperseded):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, wizard.ErrClosed):
		writeJSON(w, http.StatusGone, errorBody{Error: err.Error()})
	default:
		writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error()})
	}
}

// owner identifica l'utente della sessione corrente.
func owner(r *http.Request) string {
	s, ok := auth.FromContext(r.Context())
	switch {
	case !ok:
		return "anonymous"
	case s.Email != "":
		return s.Email
	case s.Token != "":
		return "token:" + s.Token
	default:
		return "anonymous"
	}
}

func (g *Gateway) wizardFor(w http.ResponseWriter, r *http.Request) (*wizard.Wizard, bool) {
	wz, err := g.sessions.Get(r.PathValue("id"), owner(r))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return wz, true
}

func (g *Gateway) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthBody{
		Status:         "ok",
		CalculatorURL:  g.calc.Configured(),
		BreakerState:   g.calc.State().String(),
		ActiveSessions: g.sessions.Len(),
	})
}

func (g *Gateway) HandleCreate(w http.ResponseWriter, r *http.Request) {
	wz := g.sessions.Create(owner(r))
	g.log.WithField("wizard", wz.ID()).Info("wizard created")
	writeJSON(w, http.StatusCreated, wz.Snapshot())
}

func (g *Gateway) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	wz, ok := g.wizardFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, wz.Snapshot())
}

func (g *Gateway) HandleProcessParameters(w http.ResponseWriter, r *http.Request) {
	wz, ok := g.wizardFor(w, r)
	if !ok {
		return
	}
	var form wizard.ProcessForm
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&form); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body: " + err.Error()})
		return
	}
	if _, err := wz.SubmitProcessParameters(form); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wz.Snapshot())
}

func (g *Gateway) HandlePreview(w http.ResponseWriter, r *http.Request) {
	wz, ok := g.wizardFor(w, r)
	if !ok {
		return
	}
	var upd previewUpdate
	if err := json.NewDecoder(io.LimitReader(r.Body, 4<<10)).Decode(&upd); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body: " + err.Error()})
		return
	}
	if err := wz.UpdatePreview(upd.Field, upd.Value); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleNamePlate riceve lo step 2 come multipart (campi + qhFile).
func (g *Gateway) HandleNamePlate(w http.ResponseWriter, r *http.Request) {
	wz, ok := g.wizardFor(w, r)
	if !ok {
		return
	}
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, g.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(g.cfg.MaxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid multipart body: " + err.Error()})
		return
	}
	form := wizard.NamePlateForm{
		Qnp:        r.FormValue("flowQnp"),
		Hnp:        r.FormValue("headHnp"),
		BKWnp:      r.FormValue("bkwBkwnp"),
		Efficiency: r.FormValue("efficiency"),
		N1:         r.FormValue("speedN1"),
		Qact:       r.FormValue("actualFlowRequired"),
		Hact:       r.FormValue("actualDischargePressure"),
		N2:         r.FormValue("actualSpeedN2"),
		Power:      r.FormValue("actualPowerConsumption"),
	}
	ds, err := readDataset(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	res, err := wz.SubmitNamePlate(r.Context(), form, ds)
	if err != nil {
		writeError(w, err)
		return
	}
	g.log.WithField("wizard", wz.ID()).Infof("POST nameplate [%dms] source=%s", time.Since(start).Milliseconds(), res.Source)
	writeJSON(w, http.StatusOK, wz.Snapshot())
}

func readDataset(r *http.Request) (wizard.Dataset, error) {
	f, hdr, err := r.FormFile("qhFile")
	if errors.Is(err, http.ErrMissingFile) {
		return wizard.Dataset{}, nil
	}
	if err != nil {
		return wizard.Dataset{}, fmt.Errorf("read qhFile: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return wizard.Dataset{}, fmt.Errorf("read qhFile: %w", err)
	}
	return wizard.Dataset{Name: hdr.Filename, Data: data}, nil
}

func (g *Gateway) HandleReset(w http.ResponseWriter, r *http.Request) {
	wz, ok := g.wizardFor(w, r)
	if !ok {
		return
	}
	wz.Reset()
	writeJSON(w, http.StatusOK, wz.Snapshot())
}

// HandleLogout drops the session upstream and closes the caller's wizards.
func (g *Gateway) HandleLogout(w http.ResponseWriter, r *http.Request) {
	who := owner(r)
	if err := g.cfg.Auth.ClearSession(r.Context(), auth.TokenFromRequest(r)); err != nil {
		g.log.WithError(err).Warn("clear session")
	}
	n := g.sessions.DropOwner(who)
	http.SetCookie(w, &http.Cookie{Name: "session", Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]int{"closed_wizards": n})
}
