package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
	"github.com/nicobenz/flowpertoire/pkg/common"
	pkgerrors "github.com/nicobenz/flowpertoire/pkg/errors"
	"github.com/nicobenz/flowpertoire/pkg/utils"
)

// nodeParam reads a positive node id from the named URL parameter
func nodeParam(r *http.Request, name string) (valueobjects.NodeID, error) {
	raw := chi.URLParam(r, name)
	id, err := valueobjects.ParseNodeID(raw)
	if err != nil {
		return 0, pkgerrors.NewValidationError(err.Error()).WithDetail(name, raw)
	}
	return id, nil
}

// boolQuery reads an optional boolean query parameter
func boolQuery(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, pkgerrors.NewValidationError(name + " must be a boolean").WithDetail(name, raw)
	}
	return v, nil
}

// decode parses and validates a JSON body
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if err := common.ParseJSONBody(w, r, dst); err != nil {
		return err
	}
	return utils.ValidateStruct(dst)
}
