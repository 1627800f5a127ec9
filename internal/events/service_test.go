package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dalgayunus/iTicket/internal/categories"
	"github.com/dalgayunus/iTicket/pkg/db/models"
	"github.com/dalgayunus/iTicket/pkg/enums"
	pkgerrors "github.com/dalgayunus/iTicket/pkg/errors"
	"github.com/dalgayunus/iTicket/pkg/pagination"
)

func TestCreateAndPublishLifecycle(t *testing.T) {
	t.Parallel()

	fx := newEventFixture(t)
	ctx := context.Background()
	organizer := Actor{UserID: uuid.New(), Role: enums.UserRoleOrganizer}

	event, err := fx.svc.Create(ctx, organizer, CreateEventInput{
		CategoryIDs: []uuid.UUID{fx.categoryID},
		Title:       "  Jazz Night ",
		Venue:       "Opera Hall",
		City:        "Baku",
		StartsAt:    time.Now().Add(72 * time.Hour),
	})
	require.NoError(t, err)
	require.Equal(t, "Jazz Night", event.Title)
	require.Equal(t, enums.EventLanguageEN, event.Language)
	require.False(t, event.IsPublished)

	// a tierless event cannot go live
	_, err = fx.svc.Publish(ctx, organizer, event.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())

	fx.seedTier(t, event.ID)
	published, err := fx.svc.Publish(ctx, organizer, event.ID)
	require.NoError(t, err)
	require.True(t, published.IsPublished)

	unpublished, err := fx.svc.Unpublish(ctx, organizer, event.ID)
	require.NoError(t, err)
	require.False(t, unpublished.IsPublished)
}

func TestCreateRejectsPastStart(t *testing.T) {
	t.Parallel()

	fx := newEventFixture(t)
	organizer := Actor{UserID: uuid.New(), Role: enums.UserRoleOrganizer}

	_, err := fx.svc.Create(context.Background(), organizer, CreateEventInput{
		CategoryIDs: []uuid.UUID{fx.categoryID},
		Title:       "Yesterday",
		Venue:       "Anywhere",
		StartsAt:    time.Now().Add(-time.Hour),
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestUpdateEnforcesOwnership(t *testing.T) {
	t.Parallel()

	fx := newEventFixture(t)
	ctx := context.Background()
	owner := Actor{UserID: uuid.New(), Role: enums.UserRoleOrganizer}
	rival := Actor{UserID: uuid.New(), Role: enums.UserRoleOrganizer}
	admin := Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}

	event, err := fx.svc.Create(ctx, owner, CreateEventInput{
		CategoryIDs: []uuid.UUID{fx.categoryID},
		Title:       "Owned",
		Venue:       "Club",
		StartsAt:    time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)

	newTitle := "Hijacked"
	_, err = fx.svc.Update(ctx, rival, event.ID, UpdateEventInput{Title: &newTitle})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeForbidden, typed.Code())

	adminTitle := "Renamed by admin"
	updated, err := fx.svc.Update(ctx, admin, event.ID, UpdateEventInput{Title: &adminTitle})
	require.NoError(t, err)
	require.Equal(t, adminTitle, updated.Title)
}

func TestListPublishedFilters(t *testing.T) {
	t.Parallel()

	fx := newEventFixture(t)
	ctx := context.Background()
	organizer := Actor{UserID: uuid.New(), Role: enums.UserRoleOrganizer}

	mkEvent := func(city string, lang enums.EventLanguage) *models.Event {
		event, err := fx.svc.Create(ctx, organizer, CreateEventInput{
			CategoryIDs: []uuid.UUID{fx.categoryID},
			Title:       "show in " + city,
			Venue:       "venue",
			City:        city,
			Language:    lang,
			StartsAt:    time.Now().Add(48 * time.Hour),
		})
		require.NoError(t, err)
		fx.seedTier(t, event.ID)
		_, err = fx.svc.Publish(ctx, organizer, event.ID)
		require.NoError(t, err)
		return event
	}

	mkEvent("Baku", enums.EventLanguageAZ)
	mkEvent("Ganja", enums.EventLanguageAZ)
	mkEvent("Baku", enums.EventLanguageEN)

	// drafts stay out of the catalog
	_, err := fx.svc.Create(ctx, organizer, CreateEventInput{
		CategoryIDs: []uuid.UUID{fx.categoryID},
		Title:       "draft",
		Venue:       "venue",
		City:        "Baku",
		StartsAt:    time.Now().Add(48 * time.Hour),
	})
	require.NoError(t, err)

	all, _, err := fx.svc.ListPublished(ctx, ListFilter{}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	baku, _, err := fx.svc.ListPublished(ctx, ListFilter{City: "baku"}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, baku, 2)

	lang := enums.EventLanguageAZ
	az, _, err := fx.svc.ListPublished(ctx, ListFilter{Language: &lang}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, az, 2)

	ganja, _, err := fx.svc.ListPublished(ctx, ListFilter{Query: "IN GAN"}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, ganja, 1)
	require.Equal(t, "show in Ganja", ganja[0].Title)
}

func TestDeleteBlockedAfterSales(t *testing.T) {
	t.Parallel()

	fx := newEventFixture(t)
	ctx := context.Background()
	organizer := Actor{UserID: uuid.New(), Role: enums.UserRoleOrganizer}

	event, err := fx.svc.Create(ctx, organizer, CreateEventInput{
		CategoryIDs: []uuid.UUID{fx.categoryID},
		Title:       "Sold Show",
		Venue:       "Arena",
		StartsAt:    time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)

	line := models.OrderLine{
		ID:           uuid.New(),
		OrderID:      uuid.New(),
		TicketTypeID: uuid.New(),
		EventID:      event.ID,
		Quantity:     1,
	}
	require.NoError(t, fx.db.Create(&line).Error)

	err = fx.svc.Delete(ctx, organizer, event.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeConflict, typed.Code())
}

func TestCategorySetManagement(t *testing.T) {
	t.Parallel()

	fx := newEventFixture(t)
	ctx := context.Background()
	organizer := Actor{UserID: uuid.New(), Role: enums.UserRoleOrganizer}

	theatre := models.Category{ID: uuid.New(), Name: "Theatre", Slug: "theatre"}
	require.NoError(t, fx.db.Create(&theatre).Error)

	event, err := fx.svc.Create(ctx, organizer, CreateEventInput{
		CategoryIDs: []uuid.UUID{fx.categoryID, theatre.ID, fx.categoryID},
		Title:       "Opera Rock",
		Venue:       "Opera Hall",
		StartsAt:    time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, event.Categories, 2)

	// only join rows are written, never the category rows themselves
	var count int64
	require.NoError(t, fx.db.Table("event_categories").Where("event_id = ?", event.ID).Count(&count).Error)
	require.EqualValues(t, 2, count)

	updated, err := fx.svc.Update(ctx, organizer, event.ID, UpdateEventInput{
		CategoryIDs: []uuid.UUID{theatre.ID},
	})
	require.NoError(t, err)
	require.Len(t, updated.Categories, 1)
	require.Equal(t, theatre.ID, updated.Categories[0].ID)

	require.NoError(t, fx.db.Table("event_categories").Where("event_id = ?", event.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)

	_, err = fx.svc.Create(ctx, organizer, CreateEventInput{
		CategoryIDs: []uuid.UUID{uuid.New()},
		Title:       "Orphan",
		Venue:       "Nowhere",
		StartsAt:    time.Now().Add(24 * time.Hour),
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())

	_, err = fx.svc.Create(ctx, organizer, CreateEventInput{
		Title:    "Uncategorized",
		Venue:    "Nowhere",
		StartsAt: time.Now().Add(24 * time.Hour),
	})
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestListPublishedByCategory(t *testing.T) {
	t.Parallel()

	fx := newEventFixture(t)
	ctx := context.Background()
	organizer := Actor{UserID: uuid.New(), Role: enums.UserRoleOrganizer}

	sport := models.Category{ID: uuid.New(), Name: "Sport", Slug: "sport"}
	require.NoError(t, fx.db.Create(&sport).Error)

	mk := func(title string, categoryIDs []uuid.UUID) {
		event, err := fx.svc.Create(ctx, organizer, CreateEventInput{
			CategoryIDs: categoryIDs,
			Title:       title,
			Venue:       "venue",
			StartsAt:    time.Now().Add(48 * time.Hour),
		})
		require.NoError(t, err)
		fx.seedTier(t, event.ID)
		_, err = fx.svc.Publish(ctx, organizer, event.ID)
		require.NoError(t, err)
	}

	mk("concert", []uuid.UUID{fx.categoryID})
	mk("derby", []uuid.UUID{sport.ID})
	mk("halftime show", []uuid.UUID{fx.categoryID, sport.ID})

	sporty, _, err := fx.svc.ListPublished(ctx, ListFilter{CategoryID: &sport.ID}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, sporty, 2)
	for _, event := range sporty {
		require.NotEmpty(t, event.Categories)
	}
}

type eventFixture struct {
	db         *gorm.DB
	svc        Service
	categoryID uuid.UUID
}

func newEventFixture(t *testing.T) *eventFixture {
	t.Helper()
	dsn := "file:events_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	for _, ddl := range []string{
		`CREATE TABLE categories (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			slug TEXT NOT NULL UNIQUE,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE events (
			id TEXT PRIMARY KEY,
			organizer_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			venue TEXT NOT NULL,
			city TEXT NOT NULL DEFAULT '',
			language TEXT NOT NULL DEFAULT 'EN',
			starts_at DATETIME NOT NULL,
			ends_at DATETIME,
			is_published BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE ticket_types (
			id TEXT PRIMARY KEY,
			event_id TEXT NOT NULL,
			name TEXT NOT NULL,
			price NUMERIC NOT NULL,
			discount_percent NUMERIC,
			quantity_total INTEGER NOT NULL,
			quantity_available INTEGER NOT NULL,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE event_categories (
			event_id TEXT NOT NULL,
			category_id TEXT NOT NULL,
			PRIMARY KEY (event_id, category_id)
		)`,
		`CREATE TABLE order_lines (
			id TEXT PRIMARY KEY,
			order_id TEXT NOT NULL,
			ticket_type_id TEXT NOT NULL,
			event_id TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			unit_price NUMERIC NOT NULL DEFAULT 0,
			created_at DATETIME
		)`,
	} {
		require.NoError(t, db.Exec(ddl).Error)
	}

	categoryRepo := categories.NewRepository(db)
	category := models.Category{ID: uuid.New(), Name: "Music", Slug: "music"}
	require.NoError(t, db.Create(&category).Error)

	svc, err := NewService(NewRepository(db), categoryRepo)
	require.NoError(t, err)
	return &eventFixture{db: db, svc: svc, categoryID: category.ID}
}

func (f *eventFixture) seedTier(t *testing.T, eventID uuid.UUID) uuid.UUID {
	t.Helper()
	tier := models.TicketType{
		ID:                uuid.New(),
		EventID:           eventID,
		Name:              "standard",
		QuantityTotal:     10,
		QuantityAvailable: 10,
	}
	require.NoError(t, f.db.Create(&tier).Error)
	return tier.ID
}
