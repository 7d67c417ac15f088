package version

import "fmt"

var (
	// GitCommit is the current HEAD set using ldflags.
	GitCommit string

	// Version is the built softwares version.
	Version = LightnodeSemVer
)

func init() {
	if GitCommit != "" {
		Version += "-" + GitCommit
	}
}

const (
	// LightnodeSemVer is the current version of the light node.
	// Must be a string because scripts like dist.sh read this file.
	LightnodeSemVer = "0.1.0"
)

// Info is the version information printed by the version command.
type Info struct {
	Lightnode     string `json:"lightnode"`
	GitCommit     string `json:"git_commit,omitempty"`
	BlockProtocol uint64 `json:"block_protocol"`
}

// NewInfo returns the version information of this build. blockProtocol is
// the block protocol the verifier understands.
func NewInfo(blockProtocol uint64) Info {
	return Info{
		Lightnode:     Version,
		GitCommit:     GitCommit,
		BlockProtocol: blockProtocol,
	}
}

func (i Info) String() string {
	return fmt.Sprintf("lightnode %s (block protocol %d)", i.Lightnode, i.BlockProtocol)
}
