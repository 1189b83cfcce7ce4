package pipeline

import (
	"errors"
	"strings"

	"github.com/aluiziolira/cardgrade/extract"
	"github.com/aluiziolira/cardgrade/models"
	"github.com/aluiziolira/cardgrade/parser"
)

// Assemble combines the image pair and grade extraction of one listing into a record
// or a rejection. It performs no I/O.
func Assemble(identifier string, pair models.ImagePair, pairErr error, ext models.Extraction) models.Outcome {
	out := models.Outcome{Identifier: identifier, Images: pair, GradeSource: ext.Source}

	switch {
	case errors.Is(pairErr, extract.ErrNoImages):
		return reject(out, models.ReasonNoImages, pairErr)
	case pairErr != nil:
		return reject(out, models.ReasonImageMissing, pairErr)
	case !parser.ValidGrade(ext.Grade):
		return reject(out, models.ReasonGradeAbsent, nil)
	case strings.TrimSpace(pair.FrontURL) == "", strings.TrimSpace(pair.BackURL) == "":
		return reject(out, models.ReasonImageMissing, nil)
	}

	record := &models.CardRecord{
		Identifier:    identifier,
		Grade:         ext.Grade,
		FrontImageURL: pair.FrontURL,
		BackImageURL:  pair.BackURL,
		Price:         ext.Price,
		Cert:          ext.Cert,
	}
	if err := parser.ValidateRecord(record); err != nil {
		return reject(out, models.ReasonImageMissing, err)
	}

	out.State = models.StateAssembled
	out.Record = record
	return out
}

func reject(out models.Outcome, reason string, err error) models.Outcome {
	out.State = models.StateRejected
	out.Reason = reason
	out.Err = err
	out.Record = nil
	return out
}
