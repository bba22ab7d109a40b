package model

// TrainingExample is one piece of route feedback handed to the weight
// update hook. The engine consumes these in bounded batches; it makes
// no guarantee that any individual example improves the scorer.
type TrainingExample struct {
	RouteID int64
	Rating  float64 // 1 (bad) .. 5 (good)
	Notes   string
}
