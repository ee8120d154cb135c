package bridgeabi

//nolint:golint
import (
	_ "embed"

	"github.com/xbridge/bridge-coordinator/contract/abi"
)

//go:embed bridge.json
var bridgeJSONABI string

const (
	Burned   = "event Burned(address indexed from, uint256 amount, string destination)"
	Minted   = "event Minted(address indexed recipient, uint256 amount, bytes32 indexed proof)"
	Released = "event Released(address indexed recipient, uint256 amount, bytes32 indexed memo)"
)

var (
	BridgeABI = abi.MustReadABI(bridgeJSONABI)

	BurnedEventSignature   = BridgeABI.Events["Burned"].ID
	MintedEventSignature   = BridgeABI.Events["Minted"].ID
	ReleasedEventSignature = BridgeABI.Events["Released"].ID
)
