package excel

// ReaderConfig holds configuration for design matrix files
type ReaderConfig struct {
	Sheet string `json:"sheet"` // empty means the first sheet of the workbook
}

// DefaultReaderConfig returns the configuration used by NewDesignReader
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{}
}
