package models

// ServerURLs is the endpoint triplet of one vault server.
type ServerURLs struct {
	Vault    string `json:"vault"`
	Identity string `json:"identity"`
	API      string `json:"api"`
}

// Region names the hosting of a server triplet.
type Region string

const (
	RegionUS         Region = "us"
	RegionEU         Region = "eu"
	RegionSelfHosted Region = "self-hosted"
)
