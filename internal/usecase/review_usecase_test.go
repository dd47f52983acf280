package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestReview_RatingIsRunningAverage(t *testing.T) {
	env := newTestEnv(t, "counter")
	ctx := context.Background()
	p := env.createProduct(t, "Fountain Pen", 3200, 4)

	ratings := []int{5, 3, 4, 2}
	for i, r := range ratings {
		_, err := env.reviews.SubmitReview(ctx, int64(200+i), p.ID, SubmitReviewInput{Rating: r, Comment: "nice"})
		require.NoError(t, err)
	}

	got := env.product(t, p.ID)
	assert.InDelta(t, 3.5, got.Rating, 1e-9)
	assert.Equal(t, int64(4), got.NumReviews)

	list, err := env.reviews.ListReviews(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 4)
	//新しい順
	assert.Equal(t, int64(203), list[0].UserID)
}

func TestReview_DuplicateDoesNotChangeRating(t *testing.T) {
	env := newTestEnv(t, "counter")
	ctx := context.Background()
	p := env.createProduct(t, "Desk Lamp", 5000, 2)

	_, err := env.reviews.SubmitReview(ctx, userA, p.ID, SubmitReviewInput{Rating: 4, Comment: "bright"})
	require.NoError(t, err)

	_, err = env.reviews.SubmitReview(ctx, userA, p.ID, SubmitReviewInput{Rating: 1, Comment: "changed my mind"})
	requireCode(t, err, CodeDuplicateReview)

	got := env.product(t, p.ID)
	assert.Equal(t, 4.0, got.Rating)
	assert.Equal(t, int64(1), got.NumReviews)
}

func TestReview_Validation(t *testing.T) {
	env := newTestEnv(t, "counter")
	ctx := context.Background()
	p := env.createProduct(t, "Folder", 100, 1)

	_, err := env.reviews.SubmitReview(ctx, 0, p.ID, SubmitReviewInput{Rating: 5, Comment: "x"})
	requireCode(t, err, CodeNotAuthenticated)

	for _, r := range []int{0, 6, -1} {
		_, err = env.reviews.SubmitReview(ctx, userA, p.ID, SubmitReviewInput{Rating: r, Comment: "x"})
		requireCode(t, err, CodeInvalidInput)
	}

	_, err = env.reviews.SubmitReview(ctx, userA, p.ID, SubmitReviewInput{Rating: 3, Comment: "   "})
	requireCode(t, err, CodeInvalidInput)

	_, err = env.reviews.SubmitReview(ctx, userA, 999, SubmitReviewInput{Rating: 3, Comment: "ok"})
	requireCode(t, err, CodeProductNotFound)

	_, err = env.reviews.ListReviews(ctx, 999)
	requireCode(t, err, CodeProductNotFound)

	assert.Equal(t, int64(0), env.product(t, p.ID).NumReviews)
}

// 同時投稿でも評価の更新を取りこぼさない
func TestReview_ConcurrentSubmissionsLoseNoUpdate(t *testing.T) {
	env := newTestEnv(t, "counter")
	ctx := context.Background()
	p := env.createProduct(t, "Whiteboard", 8000, 3)

	const reviewers = 20
	var g errgroup.Group
	for i := 0; i < reviewers; i++ {
		i := i
		g.Go(func() error {
			rating := 1 + i%5
			_, err := env.reviews.SubmitReview(ctx, int64(500+i), p.ID, SubmitReviewInput{Rating: rating, Comment: "review"})
			return err
		})
	}
	require.NoError(t, g.Wait())

	got := env.product(t, p.ID)
	assert.Equal(t, int64(reviewers), got.NumReviews)
	// 1..5が4回ずつ
	assert.InDelta(t, 3.0, got.Rating, 1e-9)
}

func TestReview_InvalidatesProductCache(t *testing.T) {
	env := newTestEnv(t, "counter")
	ctx := context.Background()
	p := env.createProduct(t, "Calculator", 2500, 5)

	_, err := env.products.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	_, hit, _ := env.cache.Get(ctx, p.ID)
	require.True(t, hit)

	_, err = env.reviews.SubmitReview(ctx, userA, p.ID, SubmitReviewInput{Rating: 5, Comment: "handy"})
	require.NoError(t, err)

	_, hit, _ = env.cache.Get(ctx, p.ID)
	assert.False(t, hit)

	fresh, err := env.products.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), fresh.NumReviews)
}
