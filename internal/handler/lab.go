package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/kitchen-rush/internal/domain/catalog"
)

// Experiment handles POST /api/lab/experiment.
func (h *Handler) Experiment(w http.ResponseWriter, r *http.Request) {
	var ids []string
	err := h.decodeObject(w, r, func(d *jx.Decoder, key string) error {
		if key != "ingredientIds" {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			v, err := d.Str()
			if err != nil {
				return err
			}
			ids = append(ids, v)
			return nil
		})
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.game.Experiment(r.Context(), PlayerFromContext(r.Context()), ids)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("success", func(e *jx.Encoder) { e.Bool(res.Recipe != nil) })
			e.Field("discovered", func(e *jx.Encoder) { e.Bool(res.Discovered) })
			if res.Recipe != nil {
				e.Field("recipe", func(e *jx.Encoder) { encodeRecipe(e, res.Recipe) })
			}
		})
	})
}

// MyRecipes handles GET /api/lab/recipes: the player's recipe book.
func (h *Handler) MyRecipes(w http.ResponseWriter, r *http.Request) {
	recipes, err := h.game.DiscoveredRecipes(r.Context(), PlayerFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeRecipes(e, recipes) })
}

// AllRecipes handles GET /api/lab/recipes/all.
func (h *Handler) AllRecipes(w http.ResponseWriter, r *http.Request) {
	recipes, err := h.game.Recipes(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeRecipes(e, recipes) })
}

func encodeRecipes(e *jx.Encoder, recipes []catalog.Recipe) {
	e.Arr(func(e *jx.Encoder) {
		for i := range recipes {
			encodeRecipe(e, &recipes[i])
		}
	})
}
