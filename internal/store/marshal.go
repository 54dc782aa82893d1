package store

import (
	"encoding/json"
	"fmt"

	"github.com/Mep-xx/dwellwell-sub001/internal/model"
)

// JSON column helpers. Attribute bags, step lists, and string lists are stored
// as JSON TEXT so schema changes on the entity side don't require migrations.

func marshalBag(bag model.AttributeBag) (string, error) {
	if bag == nil {
		return "{}", nil
	}
	b, err := json.Marshal(bag)
	if err != nil {
		return "", fmt.Errorf("marshal attributes: %w", err)
	}
	return string(b), nil
}

func unmarshalBag(raw string) (model.AttributeBag, error) {
	if raw == "" || raw == "{}" {
		return model.AttributeBag{}, nil
	}
	var bag model.AttributeBag
	if err := json.Unmarshal([]byte(raw), &bag); err != nil {
		return nil, fmt.Errorf("unmarshal attributes: %w", err)
	}
	return bag, nil
}

func marshalSteps(steps []model.TemplateStep) (string, error) {
	if steps == nil {
		return "[]", nil
	}
	b, err := json.Marshal(steps)
	if err != nil {
		return "", fmt.Errorf("marshal steps: %w", err)
	}
	return string(b), nil
}

func unmarshalSteps(raw string) ([]model.TemplateStep, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var steps []model.TemplateStep
	if err := json.Unmarshal([]byte(raw), &steps); err != nil {
		return nil, fmt.Errorf("unmarshal steps: %w", err)
	}
	return steps, nil
}

func marshalStrings(items []string) (string, error) {
	if items == nil {
		return "[]", nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("marshal string list: %w", err)
	}
	return string(b), nil
}

func unmarshalStrings(raw string) ([]string, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("unmarshal string list: %w", err)
	}
	return items, nil
}
