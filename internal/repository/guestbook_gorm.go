package repository

import (
	"context"
	"errors"
	"time"

	"senbon/internal/database"
	"senbon/internal/models"
	"senbon/internal/observability"

	"gorm.io/gorm"
)

// guestbookRow maps the guestbook table. Timestamps are managed here, not by
// GORM: updated_at stays NULL until the first moderation transition.
type guestbookRow struct {
	ID        string     `gorm:"column:id;primaryKey"`
	Name      *string    `gorm:"column:name"`
	Message   string     `gorm:"column:message;not null"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime:false;index:guestbook_created_at_idx,sort:desc"`
	UpdatedAt *time.Time `gorm:"column:updated_at;autoUpdateTime:false"`
	Edited    bool       `gorm:"column:edited"`
	Approved  bool       `gorm:"column:approved"`
	Rejected  bool       `gorm:"column:rejected"`
	IPHash    *string    `gorm:"column:ip_hash;index:guestbook_ip_hash_idx"`
}

func (guestbookRow) TableName() string { return database.TableName }

func rowFromEntry(e *models.GuestbookEntry) guestbookRow {
	row := guestbookRow{
		ID:        e.ID,
		Message:   e.Message,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
		Edited:    e.Edited,
		Approved:  e.Approved,
		Rejected:  e.Rejected,
	}
	if e.Name != "" {
		name := e.Name
		row.Name = &name
	}
	if e.SubmitterFingerprint != "" {
		fp := e.SubmitterFingerprint
		row.IPHash = &fp
	}
	return row
}

func (r guestbookRow) toEntry() *models.GuestbookEntry {
	e := &models.GuestbookEntry{
		ID:        r.ID,
		Name:      models.DefaultName,
		Message:   r.Message,
		CreatedAt: r.CreatedAt.UTC(),
		Edited:    r.Edited,
		Approved:  r.Approved,
		Rejected:  r.Rejected,
	}
	if r.Name != nil && *r.Name != "" {
		e.Name = *r.Name
	}
	if r.UpdatedAt != nil {
		t := r.UpdatedAt.UTC()
		e.UpdatedAt = &t
	}
	if r.IPHash != nil {
		e.SubmitterFingerprint = *r.IPHash
	}
	return e
}

// gormGuestbookRepository implements GuestbookRepository on a relational database.
type gormGuestbookRepository struct {
	db      *gorm.DB
	schema  *database.SchemaManager
	timeout time.Duration
}

// NewGormGuestbookRepository creates the persistent store. Every operation
// first makes sure the schema exists and is bounded by timeout.
func NewGormGuestbookRepository(db *gorm.DB, schema *database.SchemaManager, timeout time.Duration) GuestbookRepository {
	return &gormGuestbookRepository{db: db, schema: schema, timeout: timeout}
}

func (r *gormGuestbookRepository) Backend() string {
	return r.db.Dialector.Name()
}

// begin bounds ctx, ensures the schema and opens a span. The returned
// func ends the span and converts backend errors into StoreErrors.
func (r *gormGuestbookRepository) begin(ctx context.Context, op string) (context.Context, func(error) error) {
	cancel := context.CancelFunc(func() {})
	if r.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
	}
	ctx, span := observability.StartStoreSpan(ctx, r.Backend(), op)
	if r.schema != nil {
		r.schema.Ensure(ctx)
	}
	start := time.Now()
	return ctx, func(err error) error {
		defer cancel()
		observability.StoreQueryLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
		err = wrapStoreErr(op, err)
		observability.EndSpan(span, err)
		return err
	}
}

func wrapStoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	observability.StoreErrors.WithLabelValues(op).Inc()
	return models.NewStoreError(op, err)
}

func (r *gormGuestbookRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return models.NewStoreError("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return models.NewStoreError("ping", err)
	}
	return nil
}

func (r *gormGuestbookRepository) Insert(ctx context.Context, entry *models.GuestbookEntry) (err error) {
	if err := prepareInsert(entry); err != nil {
		return err
	}
	ctx, done := r.begin(ctx, "insert")
	defer func() { err = done(err) }()

	row := rowFromEntry(entry)
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *gormGuestbookRepository) GetByID(ctx context.Context, id string) (_ *models.GuestbookEntry, err error) {
	ctx, done := r.begin(ctx, "get")
	defer func() { err = done(err) }()

	var rows []guestbookRow
	if err := r.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, notFound(id)
	}
	return rows[0].toEntry(), nil
}

func (r *gormGuestbookRepository) ListByStatus(ctx context.Context, status models.EntryStatus, limit, offset int) (_ []*models.GuestbookEntry, err error) {
	limit, offset = ClampPage(limit, offset)
	ctx, done := r.begin(ctx, "list")
	defer func() { err = done(err) }()

	q := r.db.WithContext(ctx).Model(&guestbookRow{})
	switch status {
	case models.StatusApproved:
		q = q.Where("approved = ? AND rejected = ?", true, false)
	case models.StatusPending:
		q = q.Where("approved = ? AND rejected = ?", false, false)
	default:
		q = q.Where("rejected = ?", true)
	}

	var rows []guestbookRow
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]*models.GuestbookEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntry())
	}
	return out, nil
}

func (r *gormGuestbookRepository) LatestByFingerprint(ctx context.Context, fingerprint string) (_ *models.GuestbookEntry, err error) {
	ctx, done := r.begin(ctx, "latest_by_fingerprint")
	defer func() { err = done(err) }()

	var rows []guestbookRow
	if err := r.db.WithContext(ctx).
		Where("ip_hash = ?", fingerprint).
		Order("created_at DESC").
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].toEntry(), nil
}

// UpdateModeration runs the update and the read-back in one transaction so a
// concurrent delete cannot land between them.
func (r *gormGuestbookRepository) UpdateModeration(ctx context.Context, id string, approved, rejected bool, at time.Time) (_ *models.GuestbookEntry, err error) {
	ctx, done := r.begin(ctx, "update_moderation")
	defer func() { err = done(err) }()

	var rows []guestbookRow
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&guestbookRow{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"approved":   approved,
				"rejected":   rejected,
				"updated_at": at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound(id)
		}
		return tx.Where("id = ?", id).Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, notFound(id)
	}
	return rows[0].toEntry(), nil
}

func (r *gormGuestbookRepository) DeleteByID(ctx context.Context, id string, ownerFingerprint *string) (err error) {
	ctx, done := r.begin(ctx, "delete")
	defer func() { err = done(err) }()

	q := r.db.WithContext(ctx).Where("id = ?", id)
	if ownerFingerprint != nil {
		var rows []guestbookRow
		if err := r.db.WithContext(ctx).Select("id", "ip_hash").Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return notFound(id)
		}
		if rows[0].IPHash == nil || *rows[0].IPHash != *ownerFingerprint {
			return forbidden()
		}
		q = q.Where("ip_hash = ?", *ownerFingerprint)
	}

	res := q.Delete(&guestbookRow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound(id)
	}
	return nil
}

func (r *gormGuestbookRepository) Count(ctx context.Context) (_ int64, err error) {
	ctx, done := r.begin(ctx, "count")
	defer func() { err = done(err) }()

	var n int64
	if err := r.db.WithContext(ctx).Model(&guestbookRow{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// Close releases the underlying connection pool.
func (r *gormGuestbookRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
