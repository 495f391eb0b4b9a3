package mms

import (
	"fmt"
	"strings"
)

// Class услуга ACSI (IEC 61850-7-2), которой соответствует PDU по
// отображению IEC 61850-8-1. Классификация рекомендательная: она опирается
// на имена объектов и может ошибаться для нестандартных моделей.
type Class int

const (
	ClassNone Class = iota
	ClassAssociate
	ClassRelease
	ClassGetServerDirectory
	ClassGetLogicalDeviceDirectory
	ClassGetLogicalNodeDirectory
	ClassGetDataValues
	ClassSetDataValues
	ClassGetDataDefinition
	ClassGetDataSetValues
	ClassSetDataSetValues
	ClassCreateDataSet
	ClassDeleteDataSet
	ClassGetDataSetDirectory
	ClassGetReportControlValues
	ClassSetReportControlValues
	ClassSelect
	ClassControl
	ClassCommandTermination
	ClassLastApplError
	ClassReport
	ClassInformationReport
	ClassGetFile
	ClassSetFile
	ClassDeleteFile
	ClassGetFileDirectory
	ClassQueryLog
	ClassServerIdentity
)

var classNames = [...]string{
	ClassNone:                      "",
	ClassAssociate:                 "Associate",
	ClassRelease:                   "Release",
	ClassGetServerDirectory:        "GetServerDirectory",
	ClassGetLogicalDeviceDirectory: "GetLogicalDeviceDirectory",
	ClassGetLogicalNodeDirectory:   "GetLogicalNodeDirectory",
	ClassGetDataValues:             "GetDataValues",
	ClassSetDataValues:             "SetDataValues",
	ClassGetDataDefinition:         "GetDataDefinition",
	ClassGetDataSetValues:          "GetDataSetValues",
	ClassSetDataSetValues:          "SetDataSetValues",
	ClassCreateDataSet:             "CreateDataSet",
	ClassDeleteDataSet:             "DeleteDataSet",
	ClassGetDataSetDirectory:       "GetDataSetDirectory",
	ClassGetReportControlValues:    "GetRCBValues",
	ClassSetReportControlValues:    "SetRCBValues",
	ClassSelect:                    "Select",
	ClassControl:                   "Operate",
	ClassCommandTermination:        "CommandTermination",
	ClassLastApplError:             "LastApplError",
	ClassReport:                    "Report",
	ClassInformationReport:         "InformationReport",
	ClassGetFile:                   "GetFile",
	ClassSetFile:                   "SetFile",
	ClassDeleteFile:                "DeleteFile",
	ClassGetFileDirectory:          "GetFileDirectory",
	ClassQueryLog:                  "QueryLog",
	ClassServerIdentity:            "GetServerIdentity",
}

func (c Class) String() string {
	if c >= 0 && int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// Classify сопоставляет PDU услуге ACSI по виду PDU и собранному при
// разборе контексту. Для ответов результат обычно ClassNone: их класс
// берётся из связанного запроса.
func Classify(kind PDUKind, dc *DecodeContext) Class {
	switch kind {
	case KindInitiateRequest, KindInitiateResponse, KindInitiateError:
		return ClassAssociate
	case KindConcludeRequest, KindConcludeResponse, KindConcludeError:
		return ClassRelease
	case KindUnconfirmed:
		return classifyReport(dc)
	case KindConfirmedRequest:
		return classifyRequest(dc)
	}
	return ClassNone
}

func classifyReport(dc *DecodeContext) Class {
	if !dc.HasService || dc.Service != InformationReport {
		return ClassNone
	}
	switch {
	case dc.VariableListName == "RPT":
		return ClassReport
	case dc.VMDName == "LastApplError" || dc.VariableListName == "LastApplError":
		return ClassLastApplError
	case isControl(dc.ItemID):
		return ClassCommandTermination
	}
	return ClassInformationReport
}

func classifyRequest(dc *DecodeContext) Class {
	if !dc.HasService {
		return ClassNone
	}
	switch dc.Service {
	case GetNameList:
		if !dc.HasObjectClass {
			return ClassNone
		}
		switch {
		case dc.ObjectClass == ObjectClassDomain && dc.ObjectScope == ScopeVMD:
			return ClassGetServerDirectory
		case dc.ObjectClass == ObjectClassNamedVariable && dc.ObjectScope == ScopeDomain:
			return ClassGetLogicalDeviceDirectory
		case dc.ObjectClass == ObjectClassNamedVariableList,
			dc.ObjectClass == ObjectClassJournal:
			return ClassGetLogicalNodeDirectory
		}
	case Identify:
		return ClassServerIdentity
	case Read:
		switch {
		case dc.VariableListName != "":
			return ClassGetDataSetValues
		case isReportControl(dc.ItemID):
			return ClassGetReportControlValues
		case isControl(dc.ItemID):
			return ClassSelect
		}
		return ClassGetDataValues
	case Write:
		switch {
		case dc.VariableListName != "":
			return ClassSetDataSetValues
		case isReportControl(dc.ItemID):
			return ClassSetReportControlValues
		case isControl(dc.ItemID):
			return ClassControl
		}
		return ClassSetDataValues
	case GetVariableAccessAttributes:
		return ClassGetDataDefinition
	case DefineNamedVariableList:
		return ClassCreateDataSet
	case GetNamedVariableListAttributes:
		return ClassGetDataSetDirectory
	case DeleteNamedVariableList:
		return ClassDeleteDataSet
	case FileOpen, FileRead, FileClose:
		return ClassGetFile
	case ObtainFile:
		return ClassSetFile
	case FileDelete:
		return ClassDeleteFile
	case FileDirectory:
		return ClassGetFileDirectory
	case ReadJournal:
		return ClassQueryLog
	}
	return ClassNone
}

// isControl: объекты управления лежат в функциональной связке CO
func isControl(item string) bool {
	return strings.Contains(item, "$CO$")
}

func isReportControl(item string) bool {
	return strings.Contains(item, "$RP$") || strings.Contains(item, "$BR$")
}
