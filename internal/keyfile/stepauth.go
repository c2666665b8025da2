package keyfile

import "fmt"

// ECDSAKeyPair is a P-256 issuer/master keypair: Public is the uncompressed
// point (0x04||X||Y), Private is the scalar.
type ECDSAKeyPair struct {
	Public  HexBytes `json:"public"`
	Private BigInt   `json:"private"`
}

// StepAuthReader is one reader's secp256k1 ECIES keypair, identified by
// its numeric id.
type StepAuthReader struct {
	ID      int      `json:"id"`
	Public  HexBytes `json:"public"`
	Private BigInt   `json:"private"`
}

// StepAuthConfig is StepAuth's keyfile: the issuer's P-256 master signing
// key plus every reader's secp256k1 ECIES keypair.
type StepAuthConfig struct {
	Master       ECDSAKeyPair      `json:"master"`
	ReaderIDSize int               `json:"reader_id_size"`
	TagIDSize    int               `json:"tag_id_size"`
	Readers      []StepAuthReader  `json:"readers"`
	Dir          string            `json:"dir"`
}

func (c *StepAuthConfig) Reader(id int) (*StepAuthReader, bool) {
	for i := range c.Readers {
		if c.Readers[i].ID == id {
			return &c.Readers[i], true
		}
	}
	return nil, false
}

func (c *StepAuthConfig) Validate() error {
	if len(c.Master.Public) == 0 || c.Master.Private.Int == nil {
		return fmt.Errorf("stepauth keyfile: master keypair incomplete")
	}
	if c.ReaderIDSize <= 0 || c.TagIDSize <= 0 {
		return fmt.Errorf("stepauth keyfile: reader_id_size/tag_id_size must be positive")
	}
	if len(c.Readers) == 0 {
		return fmt.Errorf("stepauth keyfile: no readers configured")
	}
	return nil
}

func SaveStepAuth(dir string, c *StepAuthConfig) error {
	return write(dir, c)
}

func LoadStepAuth(dir string) (*StepAuthConfig, error) {
	var c StepAuthConfig
	if err := read(dir, &c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
