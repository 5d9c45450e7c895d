package importer

import (
	"context"

	"go.uber.org/zap"

	"github.com/nabijung/thepilatesapp-sub000/internal/source"
	"github.com/nabijung/thepilatesapp-sub000/internal/store"
	"github.com/nabijung/thepilatesapp-sub000/pkg/logger"
)

// ImportExercises copies exerciseDataLists into exercise_lists and exercises.
// The catalog carries no legacy id mapping, so every call appends. Rows are
// stamped with the import time: cleanup finds the catalog by creation window.
// The destination tables must expose the columns in store.Contract; a
// mismatch is returned before anything is written.
func (im *Importer) ImportExercises(ctx context.Context) (Counts, error) {
	log := im.log.Named("exercises")
	var c Counts

	for _, table := range []string{store.TableExerciseLists, store.TableExercises} {
		if err := im.repo.CheckContract(ctx, table, store.Contract[table]); err != nil {
			return c, err
		}
	}

	created := im.opts.Now().UTC()
	for _, listLegacy := range source.SortedKeys(im.doc.ExerciseDataLists) {
		if ctx.Err() != nil {
			break
		}
		a := im.doc.ExerciseDataLists[listLegacy]

		listID, err := im.repo.InsertExerciseList(ctx, store.ExerciseList{
			Name:      a.First("name", "title"),
			CreatedAt: created,
		})
		if err != nil {
			log.Error("failed to create exercise list", zap.String("legacy_id", listLegacy), logger.Error(err))
			c.Failed++
			continue
		}
		c.Created++

		for _, ex := range exercisesOf(a) {
			_, err := im.repo.InsertExercise(ctx, store.Exercise{
				ExerciseListID: listID,
				Name:           ex.First("name", "title"),
				Description:    ex.String("description"),
				CreatedAt:      created,
			})
			if err != nil {
				log.Error("failed to create exercise",
					zap.String("list", listLegacy), zap.String("exercise", ex.First("name", "title")), logger.Error(err))
				c.Failed++
				continue
			}
			c.Created++
		}
		log.Debug("exercise list imported", zap.String("legacy_id", listLegacy), zap.String("id", listID))
	}
	return c, nil
}

// exercisesOf reads a list's exercises, stored either as an id-keyed object
// or as an array.
func exercisesOf(list source.Attrs) []source.Attrs {
	var out []source.Attrs
	switch v := list["exercises"].(type) {
	case map[string]any:
		for _, id := range source.SortedKeys(v) {
			if ex, ok := v[id].(map[string]any); ok {
				out = append(out, ex)
			}
		}
	case []any:
		for _, item := range v {
			switch ex := item.(type) {
			case map[string]any:
				out = append(out, ex)
			case string:
				out = append(out, source.Attrs{"name": ex})
			}
		}
	}
	return out
}
