package apiserver

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"agents-admin/internal/model"
	"agents-admin/internal/store/postgres"
	"agents-admin/internal/xynerrors"
)

// packInstallInputs is what the worker-side packinstall blueprint reads out
// of a run's inputs to drive steps 3-6 of the state machine (spec §4.4);
// step 1 (validate/normalize) and step 2 (claim-insert) already ran here,
// synchronously, so the 409 conflict response can be bit-exact per spec §6.
type packInstallInputs struct {
	InstallationID string `json:"installation_id"`
	PackRef        string `json:"pack_ref"`
	EnvID          string `json:"env_id"`
}

// InstallPack runs steps 1-2 of the pack-installation state machine inline
// (validate the ref, normalize the schema name, claim-insert the
// installation row) so a conflicting state is visible in the HTTP response
// itself, then enqueues a packinstall run to drive provisioning, migration,
// and finalize. POST /packs/{pack_ref}/install
func (s *Server) InstallPack(w http.ResponseWriter, r *http.Request) {
	packRef := r.PathValue("pack_ref")
	envID := r.URL.Query().Get("env_id")
	if envID == "" {
		envID = "default"
	}

	pack, err := s.store.GetPackByRef(r.Context(), packRef)
	if err != nil {
		writeError(w, err)
		return
	}

	schemaName, err := postgres.NormalizeSchemaName(pack.PackRef)
	if err != nil {
		writeError(w, err)
		return
	}

	now := time.Now()
	runID := generateID("run")
	installationID := generateID("inst")
	installation := &model.PackInstallation{
		ID:                installationID,
		PackID:            pack.ID,
		PackRef:           pack.PackRef,
		EnvID:             envID,
		Status:            model.InstallationInstalling,
		SchemaMode:        model.SchemaModePerPack,
		SchemaName:        &schemaName,
		MigrationProvider: "sql",
		InstalledByRunID:  &runID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	claimed, err := s.store.ClaimInstallation(r.Context(), installation)
	if err != nil {
		writeError(w, err)
		return
	}
	if !claimed {
		existing, err := s.store.GetInstallationByRef(r.Context(), pack.PackRef, envID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeInstallConflict(w, existing)
		return
	}

	inputs, err := json.Marshal(packInstallInputs{InstallationID: installationID, PackRef: pack.PackRef, EnvID: envID})
	if err != nil {
		writeError(w, xynerrors.Internal(xynerrors.KindInvariantViolation, "encode pack install inputs: %v", err))
		return
	}

	run := &model.Run{
		ID:            runID,
		Name:          "pack-install:" + pack.PackRef,
		BlueprintRef:  "packinstall",
		Status:        model.RunStatusQueued,
		RunAt:         now,
		QueuedAt:      now,
		CorrelationID: runID,
		Inputs:        inputs,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateRun(r.Context(), run); err != nil {
		writeError(w, err)
		return
	}

	s.log.WithContext(r.Context()).Info("pack install enqueued", "run_id", runID, "pack_ref", pack.PackRef, "env_id", envID)
	writeJSON(w, http.StatusCreated, map[string]string{"run_id": runID, "correlation_id": runID})
}

// writeInstallConflict classifies an already-claimed installation row per
// spec §4.4 step 2 / §7's taxonomy and renders the bit-exact 409 body of §6.
func writeInstallConflict(w http.ResponseWriter, existing *model.PackInstallation) {
	detail := map[string]interface{}{"existing_installation_id": existing.ID}

	switch existing.Status {
	case model.InstallationInstalled:
		detail["error"] = string(xynerrors.KindPackAlreadyInstalled)
	case model.InstallationInstalling:
		detail["error"] = string(xynerrors.KindInstallationInProgress)
		if existing.InstalledByRunID != nil {
			detail["existing_run_id"] = *existing.InstalledByRunID
		}
	case model.InstallationFailed:
		detail["error"] = string(xynerrors.KindInstallationPreviouslyFailed)
		if len(existing.Error) > 0 {
			detail["error_details"] = json.RawMessage(existing.Error)
		}
		if existing.LastErrorAt != nil {
			detail["last_error_at"] = existing.LastErrorAt
		}
	default: // uninstalling, upgrading
		detail["error"] = string(xynerrors.KindConflictingState)
	}

	writeJSON(w, http.StatusConflict, map[string]interface{}{"detail": detail})
}

// packUpgradeInputs is what the worker-side packupgrade blueprint reads out
// of a run's inputs. The claim (installed -> upgrading) runs here
// synchronously, mirroring InstallPack's synchronous claim-insert.
type packUpgradeInputs struct {
	InstallationID string `json:"installation_id"`
	PackRef        string `json:"pack_ref"`
	EnvID          string `json:"env_id"`
}

// UpgradePack claims an already-installed row (status installed->upgrading)
// and enqueues a packupgrade run to migrate it to pack_ref's version.
// POST /packs/{pack_ref}/upgrade
func (s *Server) UpgradePack(w http.ResponseWriter, r *http.Request) {
	packRef := r.PathValue("pack_ref")
	envID := r.URL.Query().Get("env_id")
	if envID == "" {
		envID = "default"
	}

	pack, err := s.store.GetPackByRef(r.Context(), packRef)
	if err != nil {
		writeError(w, err)
		return
	}

	baseRef := baseRefOf(packRef)
	existing, err := s.store.GetInstallationByBaseRef(r.Context(), baseRef, envID)
	if err != nil {
		writeError(w, err)
		return
	}
	if existing.Status != model.InstallationInstalled {
		writeInstallConflict(w, existing)
		return
	}

	runID := generateID("run")
	claimed, err := s.store.ClaimUpgrade(r.Context(), existing.ID, runID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !claimed {
		current, err := s.store.GetInstallation(r.Context(), existing.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeInstallConflict(w, current)
		return
	}

	inputs, err := json.Marshal(packUpgradeInputs{InstallationID: existing.ID, PackRef: pack.PackRef, EnvID: envID})
	if err != nil {
		writeError(w, xynerrors.Internal(xynerrors.KindInvariantViolation, "encode pack upgrade inputs: %v", err))
		return
	}

	now := time.Now()
	run := &model.Run{
		ID:            runID,
		Name:          "pack-upgrade:" + pack.PackRef,
		BlueprintRef:  "packupgrade",
		Status:        model.RunStatusQueued,
		RunAt:         now,
		QueuedAt:      now,
		CorrelationID: runID,
		Inputs:        inputs,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateRun(r.Context(), run); err != nil {
		writeError(w, err)
		return
	}

	s.log.WithContext(r.Context()).Info("pack upgrade enqueued", "run_id", runID, "pack_ref", pack.PackRef, "env_id", envID)
	writeJSON(w, http.StatusCreated, map[string]string{"run_id": runID, "correlation_id": runID})
}

// baseRefOf strips a pack_ref's "@version" suffix, e.g. "core.domain@v2" -> "core.domain".
func baseRefOf(packRef string) string {
	if i := strings.LastIndex(packRef, "@"); i >= 0 {
		return packRef[:i]
	}
	return packRef
}

// InstallStatus reports the current pack_installations row for pack_ref/env_id.
// GET /packs/{pack_ref}/status?env_id=
func (s *Server) InstallStatus(w http.ResponseWriter, r *http.Request) {
	packRef := r.PathValue("pack_ref")
	envID := r.URL.Query().Get("env_id")
	if envID == "" {
		envID = "default"
	}

	installation, err := s.store.GetInstallationByRef(r.Context(), packRef, envID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": installation.Status, "installation": installation})
}
