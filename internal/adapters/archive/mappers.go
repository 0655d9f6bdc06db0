package archive

import (
	"encoding/json"
	"fmt"

	"vigia/internal/domain"
)

// domainToModel converts a domain session plus archival metadata into the
// GORM model
func domainToModel(archived domain.ArchivedSession) (ArchivedSessionModel, error) {
	actions, err := json.Marshal(archived.Actions)
	if err != nil {
		return ArchivedSessionModel{}, fmt.Errorf("failed to serialize actions: %w", err)
	}
	checkpoints, err := json.Marshal(archived.Checkpoints)
	if err != nil {
		return ArchivedSessionModel{}, fmt.Errorf("failed to serialize checkpoints: %w", err)
	}

	return ArchivedSessionModel{
		ActionsJSON:     string(actions),
		ArchivedAt:      archived.ArchivedAt,
		CheckpointsJSON: string(checkpoints),
		CompletedAt:     archived.CompletedAt,
		Context:         archived.Context,
		Depth:           archived.Depth,
		ID:              archived.ID,
		Name:            archived.Name,
		ParentID:        archived.ParentID,
		Phase:           string(archived.Phase),
		Reason:          archived.Reason,
		Result:          archived.Result,
		Role:            archived.Role,
		SessionUpdated:  archived.Session.UpdatedAt,
		Status:          string(archived.Status),
	}, nil
}

// modelToDomain converts the GORM model back into the domain representation
func modelToDomain(model ArchivedSessionModel) (domain.ArchivedSession, error) {
	var actions []domain.ActionRecord
	if model.ActionsJSON != "" {
		if err := json.Unmarshal([]byte(model.ActionsJSON), &actions); err != nil {
			return domain.ArchivedSession{}, fmt.Errorf("failed to parse actions for %s: %w", model.ID, err)
		}
	}
	var checkpoints []domain.Checkpoint
	if model.CheckpointsJSON != "" {
		if err := json.Unmarshal([]byte(model.CheckpointsJSON), &checkpoints); err != nil {
			return domain.ArchivedSession{}, fmt.Errorf("failed to parse checkpoints for %s: %w", model.ID, err)
		}
	}

	return domain.ArchivedSession{
		Session: domain.Session{
			Actions:     actions,
			Checkpoints: checkpoints,
			CompletedAt: model.CompletedAt,
			Context:     model.Context,
			CreatedAt:   model.CreatedAt,
			Depth:       model.Depth,
			ID:          model.ID,
			Name:        model.Name,
			ParentID:    model.ParentID,
			Phase:       domain.Phase(model.Phase),
			Result:      model.Result,
			Role:        model.Role,
			Status:      domain.Status(model.Status),
			UpdatedAt:   model.SessionUpdated,
		},
		ArchivedAt: model.ArchivedAt,
		Reason:     model.Reason,
	}, nil
}
