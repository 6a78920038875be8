package workflow

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// AcademicYearPair returns the academic year containing t. Years start in September.
func AcademicYearPair(t time.Time) (start, end int) {
	start = t.Year()
	if t.Month() < time.September {
		start--
	}

	return start, start + 1
}

// YearCode formats the academic year containing t as "25/26".
func YearCode(t time.Time) string {
	start, end := AcademicYearPair(t)

	return fmt.Sprintf("%02d/%02d", start%100, end%100)
}

// BcrNumber builds "BCR-25/26-007".
func BcrNumber(t time.Time, record int) string {
	return fmt.Sprintf("BCR-%s-%03d", YearCode(t), record)
}

// SubmissionCode builds "SUB-25/26-007".
func SubmissionCode(t time.Time, record int) string {
	return fmt.Sprintf("SUB-%s-%03d", YearCode(t), record)
}

// NextRecordNumber returns one more than the highest record_number in model's table, soft deleted rows included.
func NextRecordNumber(tx *gorm.DB, model any) (int, error) {
	var highest int

	err := tx.Unscoped().Model(model).Select("COALESCE(MAX(record_number), 0)").Scan(&highest).Error
	if err != nil {
		return 0, fmt.Errorf("failed to read record number: %w", err)
	}

	return highest + 1, nil
}
