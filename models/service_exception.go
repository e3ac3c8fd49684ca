package models

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aaroncutress/gtfs-itineraries/internal/csvtab"
)

// Enum for the types of service exception
type ExceptionType uint8

const (
	AddedExceptionType ExceptionType = iota + 1
	RemovedExceptionType
)

// Represents an exception for a service on a specific date
type ServiceException struct {
	ServiceID string
	Date      time.Time
	Type      ExceptionType
}

// Schema of calendar_dates.txt
type ServiceExceptionSchema struct{}

func (ServiceExceptionSchema) Name() string       { return "calendar_dates.txt" }
func (ServiceExceptionSchema) PrimaryKey() string { return "service_id" }
func (ServiceExceptionSchema) Columns() []string {
	return []string{"service_id", "date", "exception_type"}
}

// Load service exceptions from the GTFS calendar_dates.txt file, in file order
func ParseServiceExceptions(dir string) ([]*ServiceException, error) {
	schema := ServiceExceptionSchema{}
	reader, err := csvtab.Open(dir, schema.Name(), schema.Columns())
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var exceptions []*ServiceException
	for {
		record, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		date, err := ParseDate(record[1])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", schema.Name(), reader.Line(), err)
		}

		var exceptionType ExceptionType
		switch record[2] {
		case "1":
			exceptionType = AddedExceptionType
		case "2":
			exceptionType = RemovedExceptionType
		default:
			return nil, fmt.Errorf("%s line %d: invalid exception type %q", schema.Name(), reader.Line(), record[2])
		}

		exceptions = append(exceptions, &ServiceException{
			ServiceID: record[0],
			Date:      date,
			Type:      exceptionType,
		})
	}

	return exceptions, nil
}
