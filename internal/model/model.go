package model

import (
	"github.com/pumpspares/src_project/internal/model/entities"
	"github.com/pumpspares/src_project/internal/model/messages"
)

// Alias per esporre tipi comuni ai servizi

type (
	ProcessParameters    = entities.ProcessParameters
	NamePlateReading     = entities.NamePlateReading
	ActualOperatingPoint = entities.ActualOperatingPoint
	SRCPoint             = entities.SRCPoint
	SRCCurve             = entities.SRCCurve
	QHPoint              = entities.QHPoint
	OperatingPoint       = entities.OperatingPoint
	ComputationSource    = entities.ComputationSource
	ScenarioCurves       = entities.ScenarioCurves
	SRCResult            = entities.SRCResult
	SRCCalculatedEvent   = messages.SRCCalculatedEvent
)

const (
	SourceBackend       = entities.SourceBackend
	SourceLocalFallback = entities.SourceLocalFallback
	SourcePreview       = entities.SourcePreview
)
