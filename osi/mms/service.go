package mms

import "fmt"

// Service номер подтверждаемой услуги MMS. Совпадает с номером тега
// альтернативы в ConfirmedServiceRequest/ConfirmedServiceResponse и с
// номером бита в ServiceSupportOptions.
type Service uint32

const (
	Status Service = iota
	GetNameList
	Identify
	Rename
	Read
	Write
	GetVariableAccessAttributes
	DefineNamedVariable
	DefineScatteredAccess
	GetScatteredAccessAttributes
	DeleteVariableAccess
	DefineNamedVariableList
	GetNamedVariableListAttributes
	DeleteNamedVariableList
	DefineNamedType
	GetNamedTypeAttributes
	DeleteNamedType
	Input
	Output
	TakeControl
	RelinquishControl
	DefineSemaphore
	DeleteSemaphore
	ReportSemaphoreStatus
	ReportPoolSemaphoreStatus
	ReportSemaphoreEntryStatus
	InitiateDownloadSequence
	DownloadSegment
	TerminateDownloadSequence
	InitiateUploadSequence
	UploadSegment
	TerminateUploadSequence
	RequestDomainDownload
	RequestDomainUpload
	LoadDomainContent
	StoreDomainContent
	DeleteDomain
	GetDomainAttributes
	CreateProgramInvocation
	DeleteProgramInvocation
	Start
	Stop
	Resume
	Reset
	Kill
	GetProgramInvocationAttributes
	ObtainFile
	DefineEventCondition
	DeleteEventCondition
	GetEventConditionAttributes
	ReportEventConditionStatus
	AlterEventConditionMonitoring
	TriggerEvent
	DefineEventAction
	DeleteEventAction
	GetEventActionAttributes
	ReportActionStatus
	DefineEventEnrollment
	DeleteEventEnrollment
	AlterEventEnrollment
	ReportEventEnrollmentStatus
	GetEventEnrollmentAttributes
	AcknowledgeEventNotification
	GetAlarmSummary
	GetAlarmEnrollmentSummary
	ReadJournal
	WriteJournal
	InitializeJournal
	ReportJournalStatus
	CreateJournal
	DeleteJournal
	GetCapabilityList
	FileOpen
	FileRead
	FileClose
	FileRename
	FileDelete
	FileDirectory

	// Биты ServiceSupportOptions после подтверждаемых услуг
	UnsolicitedStatus
	InformationReport
	EventNotification
	AttachToEventCondition
	AttachToSemaphore
	Conclude
	Cancel
)

// ConfirmedServiceCount количество подтверждаемых услуг (0..77)
const ConfirmedServiceCount = int(FileDirectory) + 1

var serviceNames = [...]string{
	Status:                         "status",
	GetNameList:                    "getNameList",
	Identify:                       "identify",
	Rename:                         "rename",
	Read:                           "read",
	Write:                          "write",
	GetVariableAccessAttributes:    "getVariableAccessAttributes",
	DefineNamedVariable:            "defineNamedVariable",
	DefineScatteredAccess:          "defineScatteredAccess",
	GetScatteredAccessAttributes:   "getScatteredAccessAttributes",
	DeleteVariableAccess:           "deleteVariableAccess",
	DefineNamedVariableList:        "defineNamedVariableList",
	GetNamedVariableListAttributes: "getNamedVariableListAttributes",
	DeleteNamedVariableList:        "deleteNamedVariableList",
	DefineNamedType:                "defineNamedType",
	GetNamedTypeAttributes:         "getNamedTypeAttributes",
	DeleteNamedType:                "deleteNamedType",
	Input:                          "input",
	Output:                         "output",
	TakeControl:                    "takeControl",
	RelinquishControl:              "relinquishControl",
	DefineSemaphore:                "defineSemaphore",
	DeleteSemaphore:                "deleteSemaphore",
	ReportSemaphoreStatus:          "reportSemaphoreStatus",
	ReportPoolSemaphoreStatus:      "reportPoolSemaphoreStatus",
	ReportSemaphoreEntryStatus:     "reportSemaphoreEntryStatus",
	InitiateDownloadSequence:       "initiateDownloadSequence",
	DownloadSegment:                "downloadSegment",
	TerminateDownloadSequence:      "terminateDownloadSequence",
	InitiateUploadSequence:         "initiateUploadSequence",
	UploadSegment:                  "uploadSegment",
	TerminateUploadSequence:        "terminateUploadSequence",
	RequestDomainDownload:          "requestDomainDownload",
	RequestDomainUpload:            "requestDomainUpload",
	LoadDomainContent:              "loadDomainContent",
	StoreDomainContent:             "storeDomainContent",
	DeleteDomain:                   "deleteDomain",
	GetDomainAttributes:            "getDomainAttributes",
	CreateProgramInvocation:        "createProgramInvocation",
	DeleteProgramInvocation:        "deleteProgramInvocation",
	Start:                          "start",
	Stop:                           "stop",
	Resume:                         "resume",
	Reset:                          "reset",
	Kill:                           "kill",
	GetProgramInvocationAttributes: "getProgramInvocationAttributes",
	ObtainFile:                     "obtainFile",
	DefineEventCondition:           "defineEventCondition",
	DeleteEventCondition:           "deleteEventCondition",
	GetEventConditionAttributes:    "getEventConditionAttributes",
	ReportEventConditionStatus:     "reportEventConditionStatus",
	AlterEventConditionMonitoring:  "alterEventConditionMonitoring",
	TriggerEvent:                   "triggerEvent",
	DefineEventAction:              "defineEventAction",
	DeleteEventAction:              "deleteEventAction",
	GetEventActionAttributes:       "getEventActionAttributes",
	ReportActionStatus:             "reportEventActionStatus",
	DefineEventEnrollment:          "defineEventEnrollment",
	DeleteEventEnrollment:          "deleteEventEnrollment",
	AlterEventEnrollment:           "alterEventEnrollment",
	ReportEventEnrollmentStatus:    "reportEventEnrollmentStatus",
	GetEventEnrollmentAttributes:   "getEventEnrollmentAttributes",
	AcknowledgeEventNotification:   "acknowledgeEventNotification",
	GetAlarmSummary:                "getAlarmSummary",
	GetAlarmEnrollmentSummary:      "getAlarmEnrollmentSummary",
	ReadJournal:                    "readJournal",
	WriteJournal:                   "writeJournal",
	InitializeJournal:              "initializeJournal",
	ReportJournalStatus:            "reportJournalStatus",
	CreateJournal:                  "createJournal",
	DeleteJournal:                  "deleteJournal",
	GetCapabilityList:              "getCapabilityList",
	FileOpen:                       "fileOpen",
	FileRead:                       "fileRead",
	FileClose:                      "fileClose",
	FileRename:                     "fileRename",
	FileDelete:                     "fileDelete",
	FileDirectory:                  "fileDirectory",
	UnsolicitedStatus:              "unsolicitedStatus",
	InformationReport:              "informationReport",
	EventNotification:              "eventNotification",
	AttachToEventCondition:         "attachToEventCondition",
	AttachToSemaphore:              "attachToSemaphore",
	Conclude:                       "conclude",
	Cancel:                         "cancel",
}

// String возвращает имя услуги в нотации ASN.1
func (s Service) String() string {
	if int(s) < len(serviceNames) {
		return serviceNames[s]
	}
	return fmt.Sprintf("Service(%d)", uint32(s))
}

// Confirmed сообщает, является ли s подтверждаемой услугой
func (s Service) Confirmed() bool {
	return int(s) < ConfirmedServiceCount
}

// ParameterCBBBit номер бита в ParameterSupportOptions
type ParameterCBBBit uint

const (
	Str1 ParameterCBBBit = iota
	Str2
	Vnam
	Valt
	Vadr
	Vsca
	Tpy
	Vlis
	Real
	SpareBit9
	Cei
)

var parameterCBBNames = [...]string{"Str1", "Str2", "Vnam", "Valt", "Vadr", "Vsca", "Tpy", "Vlis", "Real", "SpareBit9", "Cei"}

func (b ParameterCBBBit) String() string {
	if int(b) < len(parameterCBBNames) {
		return parameterCBBNames[b]
	}
	return fmt.Sprintf("ParameterCBBBit(%d)", b)
}
