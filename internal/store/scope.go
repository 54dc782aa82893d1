package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Mep-xx/dwellwell-sub001/internal/model"
)

// UpsertHome inserts or replaces a home record with its attribute bag.
func (s *Store) UpsertHome(ctx context.Context, id, name string, attrs model.AttributeBag) error {
	bag, err := marshalBag(attrs)
	if err != nil {
		return fmt.Errorf("upsert home %q: %w", id, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO homes (id, name, attributes) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, attributes = excluded.attributes
	`, id, name, bag)
	if err != nil {
		return fmt.Errorf("upsert home %q: %w", id, err)
	}
	return nil
}

// UpsertRoom inserts or replaces a room record with its attribute and
// room-detail bags.
func (s *Store) UpsertRoom(ctx context.Context, id, homeID, name string, attrs, detail model.AttributeBag) error {
	bag, err := marshalBag(attrs)
	if err != nil {
		return fmt.Errorf("upsert room %q: %w", id, err)
	}
	detailBag, err := marshalBag(detail)
	if err != nil {
		return fmt.Errorf("upsert room %q: %w", id, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rooms (id, home_id, name, attributes, detail) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			home_id = excluded.home_id, name = excluded.name,
			attributes = excluded.attributes, detail = excluded.detail
	`, id, homeID, name, bag, detailBag)
	if err != nil {
		return fmt.Errorf("upsert room %q: %w", id, err)
	}
	return nil
}

// UpsertTrackable inserts or replaces a trackable record. Lifecycle fields
// (status, paused/retired stamps) are written as-is; lifecycle transitions go
// through UpdateTrackableStatus.
func (s *Store) UpsertTrackable(ctx context.Context, t *model.Trackable) error {
	bag, err := marshalBag(t.Attributes)
	if err != nil {
		return fmt.Errorf("upsert trackable %q: %w", t.ID, err)
	}
	if t.Status == "" {
		t.Status = model.TrackableInUse
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trackables
		(id, home_id, room_id, name, brand, model, type, category, status,
		 paused_at, retired_at, retire_reason, attributes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			home_id = excluded.home_id, room_id = excluded.room_id,
			name = excluded.name, brand = excluded.brand, model = excluded.model,
			type = excluded.type, category = excluded.category,
			attributes = excluded.attributes
	`, t.ID, t.HomeID, t.RoomID, t.Name, t.Brand, t.Model, t.Type, t.Category,
		string(t.Status), nullTime(t.PausedAt), nullTime(t.RetiredAt), t.RetireReason, bag)
	if err != nil {
		return fmt.Errorf("upsert trackable %q: %w", t.ID, err)
	}
	return nil
}

// GetTrackable retrieves a trackable by ID. Returns ErrNotFound if missing.
func (s *Store) GetTrackable(ctx context.Context, id string) (*model.Trackable, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, home_id, room_id, name, brand, model, type, category, status,
		       paused_at, retired_at, retire_reason, attributes
		FROM trackables WHERE id = ?
	`, id)

	var (
		t         model.Trackable
		status    string
		pausedAt  sql.NullTime
		retiredAt sql.NullTime
		bag       string
	)
	err := row.Scan(&t.ID, &t.HomeID, &t.RoomID, &t.Name, &t.Brand, &t.Model, &t.Type,
		&t.Category, &status, &pausedAt, &retiredAt, &t.RetireReason, &bag)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan trackable: %w", err)
	}

	t.Status = model.TrackableStatus(status)
	t.PausedAt = timePtr(pausedAt)
	t.RetiredAt = timePtr(retiredAt)
	if t.Attributes, err = unmarshalBag(bag); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTrackableStatus persists a lifecycle transition on a trackable.
func (s *Store) UpdateTrackableStatus(ctx context.Context, t *model.Trackable) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE trackables SET status = ?, paused_at = ?, retired_at = ?, retire_reason = ?
		WHERE id = ?
	`, string(t.Status), nullTime(t.PausedAt), nullTime(t.RetiredAt), t.RetireReason, t.ID)
	if err != nil {
		return fmt.Errorf("update trackable %q: %w", t.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update trackable %q: %w", t.ID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ScopeSnapshot assembles the read-only attribute view for a scope instance.
//
// Room snapshots carry the owning home's bag; trackable snapshots carry the
// owning home and room bags when those references exist. Returns ErrNotFound
// when the scope instance itself is missing; dangling parent references are
// tolerated (their bags are simply absent).
func (s *Store) ScopeSnapshot(ctx context.Context, scopeType model.ScopeType, id string) (*model.ScopeSnapshot, error) {
	snap := &model.ScopeSnapshot{Type: scopeType, ID: id}

	switch scopeType {
	case model.ScopeHome:
		attrs, _, err := s.homeBag(ctx, id)
		if err != nil {
			return nil, err
		}
		snap.Home = attrs
		snap.HomeID = id

	case model.ScopeRoom:
		attrs, detail, homeID, err := s.roomBags(ctx, id)
		if err != nil {
			return nil, err
		}
		snap.Room = attrs
		snap.RoomDetail = detail
		snap.RoomID = id
		snap.HomeID = homeID
		if homeID != "" {
			if homeAttrs, _, err := s.homeBag(ctx, homeID); err == nil {
				snap.Home = homeAttrs
			} else if !errors.Is(err, ErrNotFound) {
				return nil, err
			}
		}

	case model.ScopeTrackable:
		t, err := s.GetTrackable(ctx, id)
		if err != nil {
			return nil, err
		}
		bag := model.AttributeBag{}
		for k, v := range t.Attributes {
			bag[k] = v
		}
		// Descriptive fields are addressable as condition attributes too.
		setIfMissing(bag, "brand", t.Brand)
		setIfMissing(bag, "model", t.Model)
		setIfMissing(bag, "type", t.Type)
		setIfMissing(bag, "category", t.Category)
		snap.Trackable = bag
		snap.TrackableID = id
		snap.HomeID = t.HomeID
		snap.RoomID = t.RoomID
		if t.HomeID != "" {
			if homeAttrs, _, err := s.homeBag(ctx, t.HomeID); err == nil {
				snap.Home = homeAttrs
			} else if !errors.Is(err, ErrNotFound) {
				return nil, err
			}
		}
		if t.RoomID != "" {
			if roomAttrs, detail, _, err := s.roomBags(ctx, t.RoomID); err == nil {
				snap.Room = roomAttrs
				snap.RoomDetail = detail
			} else if !errors.Is(err, ErrNotFound) {
				return nil, err
			}
		}

	default:
		return nil, fmt.Errorf("scope snapshot: invalid scope type %q", scopeType)
	}

	return snap, nil
}

func setIfMissing(bag model.AttributeBag, key, value string) {
	if value == "" {
		return
	}
	if _, ok := bag[key]; !ok {
		bag[key] = value
	}
}

func (s *Store) homeBag(ctx context.Context, id string) (model.AttributeBag, string, error) {
	var name, raw string
	err := s.db.QueryRowContext(ctx, `SELECT name, attributes FROM homes WHERE id = ?`, id).
		Scan(&name, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("read home %q: %w", id, err)
	}
	bag, err := unmarshalBag(raw)
	return bag, name, err
}

func (s *Store) roomBags(ctx context.Context, id string) (attrs, detail model.AttributeBag, homeID string, err error) {
	var rawAttrs, rawDetail string
	err = s.db.QueryRowContext(ctx, `SELECT home_id, attributes, detail FROM rooms WHERE id = ?`, id).
		Scan(&homeID, &rawAttrs, &rawDetail)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, "", ErrNotFound
	}
	if err != nil {
		return nil, nil, "", fmt.Errorf("read room %q: %w", id, err)
	}
	if attrs, err = unmarshalBag(rawAttrs); err != nil {
		return nil, nil, "", err
	}
	if detail, err = unmarshalBag(rawDetail); err != nil {
		return nil, nil, "", err
	}
	return attrs, detail, homeID, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
