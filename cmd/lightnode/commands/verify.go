package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	cfg "github.com/tendermint/lightnode/config"
	"github.com/tendermint/lightnode/light"
	"github.com/tendermint/lightnode/types"
)

// VerifyCmd brings a single height into trust and prints its light block.
var VerifyCmd = &cobra.Command{
	Use:   "verify [height]",
	Short: "Verify the light block at height, or the latest one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  verify,
}

func verify(cmd *cobra.Command, args []string) error {
	var height uint64
	if len(args) == 1 {
		h, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid height %q: %w", args[0], err)
		}
		height = h
	}

	node, err := newLightNode(config, nil, light.NopMetrics(), logger)
	if err != nil {
		return err
	}
	defer node.Close()

	lb, err := verifyHeight(cmd.Context(), node, config.SubjectiveInit, height)
	if err != nil {
		return err
	}

	bz, err := lb.MarshalJSON()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(bz))
	return nil
}

// verifyHeight returns the trusted light block at height, verifying it
// first if it is above the trusted state. Height 0 means the latest light
// block of the remote.
func verifyHeight(
	ctx context.Context,
	node *lightNode,
	subjInit cfg.SubjectiveInitConfig,
	height uint64) (*types.LightBlock, error) {

	trusted, err := node.ensureTrusted(ctx, subjInit)
	if err != nil {
		return nil, err
	}

	switch {
	case height == 0:
		if _, err := node.demuxer.VerifyLatest(ctx, node.opts); err != nil {
			return nil, err
		}
		return node.demuxer.LatestTrusted()
	case height <= trusted.Height:
		lb, err := node.reader.LightBlock(height)
		if err != nil {
			return nil, fmt.Errorf("height %d is below the latest trusted height %d and was skipped: %w",
				height, trusted.Height, err)
		}
		return lb, nil
	default:
		lbs, err := node.demuxer.VerifyHeight(ctx, height, trusted, node.opts)
		if err != nil {
			return nil, err
		}
		return lbs[len(lbs)-1], nil
	}
}
