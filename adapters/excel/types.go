package excel

import "gonum.org/v1/gonum/mat"

// DesignData represents a parsed design matrix file
type DesignData struct {
	Headers []string   // Column headers, nil when the file has none
	Matrix  *mat.Dense // n×p design, one row per observation
}
