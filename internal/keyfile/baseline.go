package keyfile

import "fmt"

// BaselineConfig is Baseline's keyfile: a single AES-256 key shared by all
// readers, plus the fixed width of a reader identifier.
type BaselineConfig struct {
	Key          HexBytes `json:"key"`
	ReaderIDSize int      `json:"reader_id_size"`
	Dir          string   `json:"dir"`
}

func (c *BaselineConfig) Validate() error {
	if len(c.Key) != 32 {
		return fmt.Errorf("baseline keyfile: key must be 32 bytes, got %d", len(c.Key))
	}
	if c.ReaderIDSize <= 0 {
		return fmt.Errorf("baseline keyfile: reader_id_size must be positive")
	}
	return nil
}

func SaveBaseline(dir string, c *BaselineConfig) error {
	return write(dir, c)
}

func LoadBaseline(dir string) (*BaselineConfig, error) {
	var c BaselineConfig
	if err := read(dir, &c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
