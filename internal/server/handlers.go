package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/muurk/castscan/internal/discovery"
	"github.com/muurk/castscan/internal/rpc"
	"github.com/muurk/castscan/internal/store"
	"github.com/muurk/castscan/internal/version"
)

const remoteTimeout = 10 * time.Second

type devicesResponse struct {
	Devices []*discovery.Device `json:"devices"`
}

type selectedResponse struct {
	Selected *discovery.Device `json:"selected"`
}

type selectRequest struct {
	Address string `json:"address"`
	Port    int    `json:"port"`
}

type renameRequest struct {
	Name string `json:"name"`
}

type playRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, devicesResponse{Devices: s.store.SavedDevices().Get()})
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	devices, err := s.store.DiscoverDevices(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "discovery_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, devicesResponse{Devices: devices})
}

func (s *Server) handleGetSelected(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, selectedResponse{Selected: s.store.SelectedDevice().Get()})
}

func (s *Server) handleSetSelected(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if strings.TrimSpace(req.Address) == "" {
		if err := s.store.SetSelectedDevice(nil); err != nil {
			writeError(w, http.StatusInternalServerError, "persist_failed", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, selectedResponse{})
		return
	}

	d, err := s.store.SelectAddress(req.Address, req.Port)
	switch {
	case errors.Is(err, store.ErrDeviceNotFound):
		writeError(w, http.StatusNotFound, "device_not_found", err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "persist_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, selectedResponse{Selected: d})
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")

	var req renameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := s.store.RenameDevice(address, req.Name); err != nil {
		writeError(w, http.StatusInternalServerError, "rename_failed", err.Error())
		return
	}

	if d := s.store.FindDevice(address); d != nil {
		writeJSON(w, http.StatusOK, d)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// selectedRemote returns a client for the selected device, writing 409 when
// nothing is selected or the device is not a remote-control player.
func (s *Server) selectedRemote(w http.ResponseWriter) (Remote, bool) {
	d := s.store.SelectedDevice().Get()
	if d == nil {
		writeError(w, http.StatusConflict, "no_selection", "no device selected")
		return nil, false
	}
	if d.Kind != discovery.KindRemoteControl {
		writeError(w, http.StatusConflict, "unsupported_device", rpc.GetShortErrorMessage(rpc.ErrUnsupportedDevice))
		return nil, false
	}
	return s.remote(d), true
}

func writeRemoteError(w http.ResponseWriter, err error) {
	if errors.Is(err, rpc.ErrNoActivePlayer) {
		writeError(w, http.StatusConflict, "no_active_player", rpc.GetShortErrorMessage(err))
		return
	}
	writeError(w, http.StatusBadGateway, "remote_failed", rpc.GetShortErrorMessage(err))
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "url is required")
		return
	}

	remote, ok := s.selectedRemote(w)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), remoteTimeout)
	defer cancel()

	if err := remote.PlayURL(ctx, req.URL); err != nil {
		writeRemoteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "playing"})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	remote, ok := s.selectedRemote(w)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), remoteTimeout)
	defer cancel()

	if err := remote.Stop(ctx); err != nil {
		writeRemoteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	remote, ok := s.selectedRemote(w)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), remoteTimeout)
	defer cancel()

	speed, err := remote.Pause(ctx)
	if err != nil {
		writeRemoteError(w, err)
		return
	}

	status := "playing"
	if speed == 0 {
		status = "paused"
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": status, "speed": speed})
}

func (s *Server) handlePlayers(w http.ResponseWriter, r *http.Request) {
	remote, ok := s.selectedRemote(w)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), remoteTimeout)
	defer cancel()

	players, err := remote.GetActivePlayers(ctx)
	if err != nil {
		writeRemoteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"players": players})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version.Version})
}
