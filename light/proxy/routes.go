package proxy

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	tmbytes "github.com/tendermint/lightnode/libs/bytes"
	"github.com/tendermint/lightnode/libs/log"
	"github.com/tendermint/lightnode/light/store"
	"github.com/tendermint/lightnode/types"
)

// Status is the body of the status route.
type Status struct {
	Size         int              `json:"size"`
	LatestHeight uint64           `json:"latest_height,omitempty"`
	LatestHash   tmbytes.HexBytes `json:"latest_hash,omitempty"`
	LatestTime   *time.Time       `json:"latest_time,omitempty"`
	ChainID      string           `json:"chain_id,omitempty"`
}

// routes serves the trusted store. It never writes to it.
type routes struct {
	reader store.Reader
	logger log.Logger
}

// lightBlock serves GET /light_block?height=N. A missing or zero height means
// the latest trusted light block.
func (r routes) lightBlock(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var height uint64
	if s := req.URL.Query().Get("height"); s != "" {
		h, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			http.Error(w, "invalid height: "+err.Error(), http.StatusBadRequest)
			return
		}
		height = h
	}

	var (
		lb  *types.LightBlock
		err error
	)
	if height == 0 {
		lb, err = r.reader.Latest()
	} else {
		lb, err = r.reader.LightBlock(height)
	}

	switch {
	case err == nil:
	case errors.Is(err, store.ErrLightBlockNotFound):
		latest, ok, lerr := r.reader.LatestHeight()
		if lerr == nil && ok && height > latest {
			http.Error(w, "height is above the latest trusted height", http.StatusRequestedRangeNotSatisfiable)
			return
		}
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	default:
		r.logger.Error("Failed to read trusted store", "height", height, "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	bz, err := lb.MarshalJSON()
	if err != nil {
		r.logger.Error("Failed to encode light block", "height", lb.Height, "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, bz)
}

func (r routes) status(w http.ResponseWriter, req *http.Request) {
	st := Status{Size: r.reader.Size()}

	lb, err := r.reader.Latest()
	switch {
	case err == nil:
		t := lb.Time
		st.LatestHeight = lb.Height
		st.LatestHash = lb.Hash()
		st.LatestTime = &t
		st.ChainID = lb.ChainID
	case errors.Is(err, store.ErrLightBlockNotFound):
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	bz, err := json.Marshal(st)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, bz)
}

func writeJSON(w http.ResponseWriter, bz []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(bz)
}
