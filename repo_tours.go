package tours

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-tours/query"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/uptrace/bun"
)

// Tours is the tour store. Secret tours are never returned.
type Tours interface {
	List(ctx context.Context, d query.Descriptor) ([]*Tour, int, error)
	// Schema maps API field names of the model for projections
	Schema() *query.Schema
	GetByID(ctx context.Context, id uuid.UUID) (*Tour, error)
	GetBySlug(ctx context.Context, slug string) (*Tour, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*Tour, error)
	Create(ctx context.Context, tour *Tour) (*Tour, error)
	Update(ctx context.Context, tour *Tour) (*Tour, error)
	Delete(ctx context.Context, id uuid.UUID) error

	Stats(ctx context.Context) ([]TourStats, error)
	MonthlyPlan(ctx context.Context, year int) ([]MonthlyPlan, error)
	Within(ctx context.Context, center LatLng, distance float64, unit DistanceUnit) ([]*Tour, error)
	Distances(ctx context.Context, center LatLng, unit DistanceUnit) ([]TourDistance, error)

	RecalculateRatingsTx(ctx context.Context, tx bun.IDB, tourID uuid.UUID) error
}

// TourStats is one difficulty bucket of tour statistics
type TourStats struct {
	Difficulty string  `bun:"difficulty" json:"_id"`
	NumTours   int     `bun:"num_tours" json:"numTours"`
	NumRatings int     `bun:"num_ratings" json:"numRatings"`
	AvgRating  float64 `bun:"avg_rating" json:"avgRating"`
	AvgPrice   float64 `bun:"avg_price" json:"avgPrice"`
	MinPrice   float64 `bun:"min_price" json:"minPrice"`
	MaxPrice   float64 `bun:"max_price" json:"maxPrice"`
}

// MonthlyPlan is the number of tour starts in a month
type MonthlyPlan struct {
	Month         int      `json:"month"`
	NumTourStarts int      `json:"numTourStarts"`
	Tours         []string `json:"tours"`
}

// TourDistance is a tour and its distance from a point
type TourDistance struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Distance float64   `json:"distance"`
}

// StatsMinRating is the rating threshold for tour statistics
const StatsMinRating = 4.5

// MonthlyPlanLimit caps the monthly plan result
const MonthlyPlanLimit = 12

type tours struct {
	db     *bun.DB
	schema *query.Schema
	users  Users
}

var _ Tours = (*tours)(nil)

func (r *tours) Schema() *query.Schema {
	return r.schema
}

func NewToursRepository(db *bun.DB, users Users) Tours {
	return &tours{
		db:     db,
		schema: query.SchemaFor(db, (*Tour)(nil)),
		users:  users,
	}
}

func (r *tours) visible(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Where("?TableAlias.secret_tour = ?", false)
}

func (r *tours) List(ctx context.Context, d query.Descriptor) ([]*Tour, int, error) {
	records := []*Tour{}
	q := r.visible(d.Apply(r.db.NewSelect().Model(&records), r.schema))

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, translateStoreError(err, "tour")
	}
	return records, total, nil
}

func (r *tours) GetByID(ctx context.Context, id uuid.UUID) (*Tour, error) {
	tour := &Tour{}
	err := r.visible(r.db.NewSelect().Model(tour)).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, translateStoreError(err, "tour")
	}
	return tour, r.populate(ctx, tour)
}

func (r *tours) GetBySlug(ctx context.Context, s string) (*Tour, error) {
	tour := &Tour{}
	err := r.visible(r.db.NewSelect().Model(tour)).
		Where("?TableAlias.slug = ?", strings.ToLower(strings.TrimSpace(s))).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, translateStoreError(err, "tour")
	}
	return tour, r.populate(ctx, tour)
}

func (r *tours) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*Tour, error) {
	records := []*Tour{}
	if len(ids) == 0 {
		return records, nil
	}
	err := r.visible(r.db.NewSelect().Model(&records)).
		Where("?TableAlias.id IN (?)", bun.In(ids)).
		OrderExpr("?TableAlias.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, translateStoreError(err, "tour")
	}
	return records, nil
}

// populate loads guides and reviews for a single tour view
func (r *tours) populate(ctx context.Context, tour *Tour) error {
	if len(tour.Guides) > 0 {
		guides := []*User{}
		err := r.db.NewSelect().Model(&guides).
			Column("id", "name", "email", "photo", "role").
			Where("?TableAlias.id IN (?)", bun.In(tour.Guides)).
			Where("?TableAlias.active = ?", true).
			Scan(ctx)
		if err != nil {
			return translateStoreError(err, "user")
		}
		tour.GuideUsers = guides
	}

	reviews := []*Review{}
	err := r.db.NewSelect().Model(&reviews).
		Relation("Author", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Column("id", "name", "photo")
		}).
		Where("?TableAlias.tour_id = ?", tour.ID).
		OrderExpr("?TableAlias.created_at DESC").
		Scan(ctx)
	if err != nil {
		return translateStoreError(err, "review")
	}
	tour.Reviews = reviews
	return nil
}

func (r *tours) Create(ctx context.Context, tour *Tour) (*Tour, error) {
	prepareTourDefaults(tour)
	if err := ValidateTour(tour); err != nil {
		return nil, err
	}

	if _, err := r.db.NewInsert().Model(tour).Exec(ctx); err != nil {
		return nil, translateStoreError(err, "tour")
	}
	return tour, nil
}

func (r *tours) Update(ctx context.Context, tour *Tour) (*Tour, error) {
	tour.Slug = slug.Make(tour.Name)
	tour.SyncStartLocation()
	tour.UpdatedAt = time.Now().UTC()
	if err := ValidateTour(tour); err != nil {
		return nil, err
	}

	tour.Version++
	res, err := r.db.NewUpdate().
		Model(tour).
		ExcludeColumn("id", "created_at", "ratings_average", "ratings_quantity").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, translateStoreError(err, "tour")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, NewNotFound("tour")
	}
	return tour, nil
}

func (r *tours) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.NewDelete().Model((*Tour)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return translateStoreError(err, "tour")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return NewNotFound("tour")
	}
	return nil
}

func (r *tours) Stats(ctx context.Context) ([]TourStats, error) {
	stats := []TourStats{}
	err := r.visible(r.db.NewSelect().Model((*Tour)(nil))).
		ColumnExpr("UPPER(?TableAlias.difficulty) AS difficulty").
		ColumnExpr("COUNT(*) AS num_tours").
		ColumnExpr("SUM(?TableAlias.ratings_quantity) AS num_ratings").
		ColumnExpr("AVG(?TableAlias.ratings_average) AS avg_rating").
		ColumnExpr("AVG(?TableAlias.price) AS avg_price").
		ColumnExpr("MIN(?TableAlias.price) AS min_price").
		ColumnExpr("MAX(?TableAlias.price) AS max_price").
		Where("?TableAlias.ratings_average >= ?", StatsMinRating).
		GroupExpr("UPPER(?TableAlias.difficulty)").
		OrderExpr("avg_price ASC").
		Scan(ctx, &stats)
	if err != nil {
		return nil, translateStoreError(err, "tour")
	}
	for i := range stats {
		stats[i].AvgRating = RoundRating(stats[i].AvgRating)
	}
	return stats, nil
}

// MonthlyPlan counts tour start dates per month of year, busiest first.
// Start dates are stored as a JSON list so the grouping happens here.
func (r *tours) MonthlyPlan(ctx context.Context, year int) ([]MonthlyPlan, error) {
	records := []*Tour{}
	err := r.visible(r.db.NewSelect().Model(&records)).
		Column("id", "name", "start_dates").
		Scan(ctx)
	if err != nil {
		return nil, translateStoreError(err, "tour")
	}

	byMonth := map[int]*MonthlyPlan{}
	for _, tour := range records {
		for _, start := range tour.StartDates {
			start = start.UTC()
			if start.Year() != year {
				continue
			}
			month := int(start.Month())
			plan, ok := byMonth[month]
			if !ok {
				plan = &MonthlyPlan{Month: month}
				byMonth[month] = plan
			}
			plan.NumTourStarts++
			plan.Tours = append(plan.Tours, tour.Name)
		}
	}

	plans := make([]MonthlyPlan, 0, len(byMonth))
	for _, plan := range byMonth {
		plans = append(plans, *plan)
	}
	sort.Slice(plans, func(i, j int) bool {
		if plans[i].NumTourStarts != plans[j].NumTourStarts {
			return plans[i].NumTourStarts > plans[j].NumTourStarts
		}
		return plans[i].Month < plans[j].Month
	})
	if len(plans) > MonthlyPlanLimit {
		plans = plans[:MonthlyPlanLimit]
	}
	return plans, nil
}

// Within returns tours whose start location lies inside the radius
func (r *tours) Within(ctx context.Context, center LatLng, distance float64, unit DistanceUnit) ([]*Tour, error) {
	candidates, err := r.boxed(ctx, center, distance, unit)
	if err != nil {
		return nil, err
	}

	out := make([]*Tour, 0, len(candidates))
	for _, tour := range candidates {
		if Haversine(center, LatLng{Lat: tour.StartLat, Lng: tour.StartLng}, unit) <= distance {
			out = append(out, tour)
		}
	}
	return out, nil
}

// Distances returns every tour with a start location, nearest first
func (r *tours) Distances(ctx context.Context, center LatLng, unit DistanceUnit) ([]TourDistance, error) {
	records := []*Tour{}
	err := r.visible(r.db.NewSelect().Model(&records)).
		Column("id", "name", "start_lat", "start_lng", "start_location").
		Scan(ctx)
	if err != nil {
		return nil, translateStoreError(err, "tour")
	}

	out := make([]TourDistance, 0, len(records))
	for _, tour := range records {
		if !tour.HasStartLocation() {
			continue
		}
		out = append(out, TourDistance{
			ID:       tour.ID,
			Name:     tour.Name,
			Distance: Haversine(center, LatLng{Lat: tour.StartLat, Lng: tour.StartLng}, unit),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out, nil
}

func (r *tours) boxed(ctx context.Context, center LatLng, distance float64, unit DistanceUnit) ([]*Tour, error) {
	minLat, maxLat, minLng, maxLng := BoundingBox(center, distance, unit)

	records := []*Tour{}
	err := r.visible(r.db.NewSelect().Model(&records)).
		Where("?TableAlias.start_location IS NOT NULL").
		Where("?TableAlias.start_lat BETWEEN ? AND ?", minLat, maxLat).
		Where("?TableAlias.start_lng BETWEEN ? AND ?", minLng, maxLng).
		Scan(ctx)
	if err != nil {
		return nil, translateStoreError(err, "tour")
	}
	return records, nil
}

// RecalculateRatingsTx refreshes the rating aggregate of a tour from its
// reviews. Without reviews the defaults come back.
func (r *tours) RecalculateRatingsTx(ctx context.Context, tx bun.IDB, tourID uuid.UUID) error {
	var agg struct {
		Quantity int     `bun:"quantity"`
		Average  float64 `bun:"average"`
	}
	err := tx.NewSelect().Model((*Review)(nil)).
		ColumnExpr("COUNT(*) AS quantity").
		ColumnExpr("COALESCE(AVG(?TableAlias.rating), 0) AS average").
		Where("?TableAlias.tour_id = ?", tourID).
		Scan(ctx, &agg)
	if err != nil {
		return translateStoreError(err, "review")
	}

	average := DefaultRatingsAverage
	if agg.Quantity > 0 {
		average = RoundRating(agg.Average)
	}

	_, err = tx.NewUpdate().Model((*Tour)(nil)).
		Set("ratings_average = ?", average).
		Set("ratings_quantity = ?", agg.Quantity).
		Where("id = ?", tourID).
		Exec(ctx)
	if err != nil {
		return translateStoreError(err, "tour")
	}
	return nil
}

func prepareTourDefaults(tour *Tour) {
	if tour.ID == uuid.Nil {
		tour.ID = uuid.New()
	}
	tour.Name = strings.TrimSpace(tour.Name)
	tour.Slug = slug.Make(tour.Name)
	if tour.RatingsAverage == 0 {
		tour.RatingsAverage = DefaultRatingsAverage
	}
	tour.RatingsAverage = RoundRating(tour.RatingsAverage)
	if tour.StartLocation != nil && tour.StartLocation.Type == "" {
		tour.StartLocation.Type = "Point"
	}
	for i := range tour.Locations {
		if tour.Locations[i].Type == "" {
			tour.Locations[i].Type = "Point"
		}
	}
	tour.SyncStartLocation()
	prepareTimestamps(&tour.CreatedAt, &tour.UpdatedAt)
}
