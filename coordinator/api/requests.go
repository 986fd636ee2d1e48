package api

import (
	"errors"
	"fmt"

	"github.com/absmach/fedavg/pkg/api"
	apiutil "github.com/absmach/supermq/api/http/util"
)

var errLimitSize = errors.New("invalid limit size")

type roundReq struct {
	round int
}

func (r *roundReq) validate() error {
	if r.round <= 0 {
		return apiutil.ErrMissingID
	}

	return nil
}

type listRoundsReq struct {
	offset, limit uint64
}

func (r *listRoundsReq) validate() error {
	if r.limit == 0 || r.limit > api.MaxLimitSize {
		return fmt.Errorf("%w: must be between 1 and %d", errLimitSize, api.MaxLimitSize)
	}

	return nil
}
