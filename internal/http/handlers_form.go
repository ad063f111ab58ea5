package http

import (
	"net/http"

	"opsboard/internal/auth"
	"opsboard/internal/core"
)

type formFieldDTO struct {
	ID       string              `json:"id"`
	Label    string              `json:"label"`
	Type     string              `json:"type"`
	Required bool                `json:"required,omitempty"`
	Options  []fieldOptionDTO    `json:"options,omitempty"`
	Rule     *conditionalRuleDTO `json:"rule,omitempty"`
}

type fieldOptionDTO struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Value string `json:"value,omitempty"`
}

type conditionalRuleDTO struct {
	FieldID  string   `json:"field_id"`
	Expected []string `json:"expected"`
}

type createFormRequest struct {
	Title  string         `json:"title"`
	Fields []formFieldDTO `json:"fields"`
}

func (req createFormRequest) toForm(tenantID int64) core.Form {
	form := core.Form{
		TenantID: tenantID,
		Title:    req.Title,
		Fields:   make([]core.FormField, 0, len(req.Fields)),
	}
	for _, f := range req.Fields {
		field := core.FormField{
			ID:       f.ID,
			Label:    f.Label,
			Type:     core.FieldType(f.Type),
			Required: f.Required,
		}
		for _, o := range f.Options {
			field.Options = append(field.Options, core.NewFieldOption(o.ID, o.Label, o.Value))
		}
		if f.Rule != nil {
			field.Rule = &core.ConditionalRule{FieldID: f.Rule.FieldID, Expected: f.Rule.Expected}
		}
		form.Fields = append(form.Fields, field)
	}
	return form
}

func toFormDTO(form core.Form) map[string]any {
	fields := make([]formFieldDTO, 0, len(form.Fields))
	for _, f := range form.Fields {
		dto := formFieldDTO{
			ID:       f.ID,
			Label:    f.Label,
			Type:     string(f.Type),
			Required: f.Required,
		}
		for _, o := range f.Options {
			dto.Options = append(dto.Options, fieldOptionDTO{ID: o.ID, Label: o.Label, Value: o.Value})
		}
		if f.Rule != nil {
			dto.Rule = &conditionalRuleDTO{FieldID: f.Rule.FieldID, Expected: f.Rule.Expected}
		}
		fields = append(fields, dto)
	}
	return map[string]any{"id": form.ID, "title": form.Title, "fields": fields}
}

func (s *Server) handleCreateForm(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	var req createFormRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	formID, err := s.forms.CreateForm(r.Context(), req.toForm(id.TenantID))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": formID})
}

func (s *Server) handleGetForm(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	formID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid form id")
		return
	}

	form, err := s.forms.GetForm(r.Context(), id.TenantID, formID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFormDTO(form))
}

type submitRequest struct {
	Responses map[string][]string `json:"responses"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	formID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid form id")
		return
	}
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	subID, err := s.forms.Submit(r.Context(), id.TenantID, formID, id.Actor, core.Responses(req.Responses))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": subID})
}
