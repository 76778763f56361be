package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	"mockupstudio/internal/domain"
	"mockupstudio/internal/pipeline"
	"mockupstudio/pkg/zip"
)

type simulationResponse struct {
	Status string   `json:"status"`
	Refs   []string `json:"refs"`
	URLs   []string `json:"urls"`
	Error  string   `json:"error,omitempty"`
}

type jobResponse struct {
	ID            string             `json:"id"`
	Kind          domain.JobKind     `json:"kind"`
	BaseProductID int64              `json:"baseProductId"`
	ParentID      *string            `json:"parentId,omitempty"`
	Status        domain.JobStatus   `json:"status"`
	ArtifactRef   *string            `json:"artifactRef"`
	ArtifactURL   string             `json:"artifactUrl,omitempty"`
	ArtifactMIME  string             `json:"artifactMime,omitempty"`
	Error         string             `json:"error,omitempty"`
	Concept       string             `json:"concept,omitempty"`
	Instructions  string             `json:"instructions,omitempty"`
	ChangeText    string             `json:"changeText,omitempty"`
	ReferenceIDs  []int64            `json:"referenceIds"`
	HasLogo       bool               `json:"hasLogo"`
	UserImages    int                `json:"userImageCount"`
	Simulation    simulationResponse `json:"simulation"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

func (a *App) jobView(j *domain.Job) jobResponse {
	resp := jobResponse{
		ID:            j.ID,
		Kind:          j.Kind,
		BaseProductID: j.BaseProductID,
		ParentID:      j.ParentID,
		Status:        j.Status,
		ArtifactRef:   j.ArtifactRef,
		ArtifactMIME:  j.ArtifactMIME,
		Error:         j.ErrorMessage,
		Concept:       j.Inputs.Concept,
		Instructions:  j.Inputs.Instructions,
		ChangeText:    j.Inputs.ChangeRequest,
		ReferenceIDs:  j.Inputs.ReferenceIDs,
		HasLogo:       j.Inputs.Logo != nil,
		UserImages:    len(j.Inputs.UserImages),
		Simulation: simulationResponse{
			Status: string(j.SimulationStatus),
			Refs:   j.SimulationRefs,
			URLs:   make([]string, 0, len(j.SimulationRefs)),
			Error:  j.SimulationError,
		},
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
	if resp.ReferenceIDs == nil {
		resp.ReferenceIDs = []int64{}
	}
	if resp.Simulation.Refs == nil {
		resp.Simulation.Refs = []string{}
	}
	if j.ArtifactRef != nil {
		resp.ArtifactURL = a.url(*j.ArtifactRef)
	}
	for _, ref := range j.SimulationRefs {
		resp.Simulation.URLs = append(resp.Simulation.URLs, a.url(ref))
	}
	return resp
}

// CreateJob accepts multipart fields baseProductId, referenceIds, concept,
// text, a logo file and userImages files.
func (a *App) CreateJob(w http.ResponseWriter, r *http.Request) {
	if err := a.parseMultipart(w, r, 1+pipeline.MaxUserImages); err != nil {
		a.fail(w, r, err)
		return
	}
	raw, _ := formValue(r, "baseProductId")
	productID, err := parseID(raw, "baseProductId")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	refIDs, err := parseIDList(r.MultipartForm.Value["referenceIds"], "referenceIds")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	logo, err := a.formImage(r, "logo")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	userImages, err := a.formImages(r, "userImages", pipeline.MaxUserImages)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	concept, _ := formValue(r, "concept")
	text, _ := formValue(r, "text")

	job, err := a.Jobs.CreateJob(r.Context(), pipeline.CreateJobInput{
		BaseProductID: productID,
		ReferenceIDs:  refIDs,
		Logo:          logo,
		UserImages:    userImages,
		Concept:       concept,
		Instructions:  text,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, a.jobView(job))
}

func (a *App) ListJobs(w http.ResponseWriter, r *http.Request) {
	var productID int64
	if raw := r.URL.Query().Get("baseProductId"); raw != "" {
		id, err := parseID(raw, "baseProductId")
		if err != nil {
			a.fail(w, r, err)
			return
		}
		productID = id
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	jobs, err := a.Jobs.Jobs(r.Context(), productID, limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]jobResponse, 0, len(jobs))
	for i := range jobs {
		items = append(items, a.jobView(&jobs[i]))
	}
	a.json(w, http.StatusOK, items)
}

func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.Jobs.Job(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, a.jobView(job))
}

func (a *App) RegenerateJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.Jobs.Regenerate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, a.jobView(job))
}

type modifyRequest struct {
	ChangeText string `json:"changeText"`
}

func (a *App) ModifyJob(w http.ResponseWriter, r *http.Request) {
	var req modifyRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	job, err := a.Jobs.Modify(r.Context(), chi.URLParam(r, "id"), req.ChangeText)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, a.jobView(job))
}

type simulateRequest struct {
	TemplateIDs []int64 `json:"templateIds"`
}

func (a *App) SimulateJob(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.Jobs.GenerateSimulationVariants(r.Context(), chi.URLParam(r, "id"), req.TemplateIDs); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

// SimulationZip downloads the completed simulation variants as one archive.
func (a *App) SimulationZip(w http.ResponseWriter, r *http.Request) {
	job, err := a.Jobs.Job(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if job.SimulationStatus != domain.SimulationCompleted || len(job.SimulationRefs) == 0 {
		a.error(w, http.StatusConflict, "simulation is not completed")
		return
	}
	assets := make([]zip.Asset, 0, len(job.SimulationRefs))
	for i, ref := range job.SimulationRefs {
		data, err := a.Blobs.Fetch(r.Context(), ref)
		if err != nil {
			a.fail(w, r, fmt.Errorf("fetch variant %d: %w", i+1, err))
			return
		}
		assets = append(assets, zip.Asset{
			Filename: fmt.Sprintf("simulation-%d%s", i+1, mimetype.Detect(data).Extension()),
			Data:     data,
		})
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="simulation-%s.zip"`, job.ID))
	w.WriteHeader(http.StatusOK)
	if err := zip.Write(w, assets, job.UpdatedAt); err != nil {
		a.Logger.Error().Err(err).Str("job_id", job.ID).Msg("write simulation zip")
	}
}

func (a *App) DeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := a.Jobs.DeleteJob(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]bool{"deleted": true})
}
