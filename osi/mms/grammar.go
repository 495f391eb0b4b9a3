package mms

import "github.com/slonegd/otdissect/ber"

// Грамматика MMS (ISO/IEC 9506-2) в виде дескрипторов ber. Строится один раз
// при загрузке пакета и не меняется во время разбора. Рекурсивные продукции
// (TypeSpecification, Data, VariableSpecification/ScatteredAccessDescription,
// AlternateAccess) ссылаются сами на себя через указатели, глубина
// ограничивается общим счётчиком ber.Context.
//
// Модуль MMS использует явные теги по умолчанию, поэтому теги перед CHOICE
// и ANY явные, остальные помечены IMPLICIT.

// mmsGrammar корневые дескрипторы, нужные диспетчеру и тестам
type mmsGrammar struct {
	pdu                 *ber.Type
	typeSpecification   *ber.Type
	data                *ber.Type
	variableSpec        *ber.Type
	alternateAccess     *ber.Type
	confirmedRequest    *ber.Type
	confirmedResponse   *ber.Type
	initiateRequestPDU  *ber.Type
	initiateResponsePDU *ber.Type
}

var grammar = newGrammar()

// Имена альтернатив, по которым дерево читается в типизированные представления
const (
	nameVMDSpecific    = "vmd-specific"
	nameDomainSpecific = "domain-specific"
	nameAASpecific     = "aa-specific"
)

func req(name string, t *ber.Type) ber.Field { return ber.Required(name, t) }
func opt(name string, t *ber.Type) ber.Field { return ber.Optional(name, t) }

func implicit(n uint32, t *ber.Type) *ber.Type { return ber.Implicit(n, t) }
func explicit(n uint32, t *ber.Type) *ber.Type { return ber.Explicit(n, t) }

// anyTagged захватывает элемент с контекстным тегом [n] любой формы как
// непрозрачные байты. Так разбираются услуги без собственной грамматики.
func anyTagged(name string, n uint32) *ber.Type {
	h := ber.ContextTag(n, false)
	return &ber.Type{Name: name, Kind: ber.KindAny, Tag: &h}
}

func private(ctx *ber.Context) *DecodeContext {
	if dc, ok := ctx.Private.(*DecodeContext); ok {
		return dc
	}
	return &DecodeContext{}
}

func newGrammar() *mmsGrammar {
	var (
		boolean    = ber.NewPrimitive(ber.KindBoolean)
		integer    = ber.NewPrimitive(ber.KindInteger)
		null       = ber.NewPrimitive(ber.KindNull)
		octets     = ber.NewPrimitive(ber.KindOctetString)
		oid        = ber.NewPrimitive(ber.KindOID)
		bitString  = ber.NewPrimitive(ber.KindBitString)
		visible    = ber.NewString(ber.VisibleString)
		identifier = ber.Named("Identifier", visible)
		mmsString  = ber.NewString(ber.UTF8String)
		genTime    = ber.NewString(ber.GeneralizedTime)
		graphic    = ber.NewString(ber.GraphicString)
	)

	objectName := ber.NewChoice("ObjectName",
		req(nameVMDSpecific, implicit(0, identifier)),
		req(nameDomainSpecific, implicit(1, ber.NewSequence(nameDomainSpecific,
			req("domainId", identifier),
			req("itemId", identifier),
		))),
		req(nameAASpecific, implicit(2, identifier)),
	)
	objectName.Hook = hookObjectName
	listName := ber.WithHook(objectName, hookListName)

	address := ber.NewChoice("Address",
		req("numericAddress", implicit(0, integer)),
		req("symbolicAddress", implicit(1, visible)),
		req("unconstrainedAddress", implicit(2, octets)),
	)

	// TypeSpecification
	typeSpec := ber.NewChoice("TypeSpecification")
	components := ber.NewSequenceOf("components", ber.NewSequence("component",
		opt("componentName", implicit(0, identifier)),
		req("componentType", explicit(1, typeSpec)),
	))
	typeSpec.Alternatives = []ber.Field{
		req("typeName", explicit(0, objectName)),
		req("array", implicit(1, ber.NewSequence("array",
			opt("packed", implicit(0, boolean)),
			req("numberOfElements", implicit(1, integer)),
			req("elementType", explicit(2, typeSpec)),
		))),
		req("structure", implicit(2, ber.NewSequence("structure",
			opt("packed", implicit(0, boolean)),
			req("components", implicit(1, components)),
		))),
		req("boolean", implicit(3, null)),
		req("bit-string", implicit(4, integer)),
		req("integer", implicit(5, integer)),
		req("unsigned", implicit(6, integer)),
		req("floating-point", implicit(7, ber.NewSequence("floating-point",
			req("format-width", integer),
			req("exponent-width", integer),
		))),
		req("octet-string", implicit(9, integer)),
		req("visible-string", implicit(10, integer)),
		req("generalized-time", implicit(11, null)),
		req("binary-time", implicit(12, boolean)),
		req("bcd", implicit(13, integer)),
		req("objId", implicit(15, null)),
		req("mMSString", implicit(16, integer)),
		req("utc-time", implicit(17, null)),
	}

	// Data
	data := ber.NewChoice("Data")
	data.Hook = hookData
	data.Alternatives = []ber.Field{
		req("array", implicit(1, ber.NewSequenceOf("array", data))),
		req("structure", implicit(2, ber.NewSequenceOf("structure", data))),
		req("boolean", implicit(3, boolean)),
		req("bit-string", implicit(4, bitString)),
		req("integer", implicit(5, integer)),
		// unsigned хранится как октеты: 64-битное значение занимает 9 октетов
		req("unsigned", implicit(6, octets)),
		req("floating-point", implicit(7, octets)),
		req("octet-string", implicit(9, octets)),
		req("visible-string", implicit(10, visible)),
		req("generalized-time", implicit(11, genTime)),
		req("binary-time", implicit(12, octets)),
		req("bcd", implicit(13, integer)),
		req("booleanArray", implicit(14, bitString)),
		req("objId", implicit(15, oid)),
		req("mMSString", implicit(16, mmsString)),
		req("utc-time", implicit(17, octets)),
	}

	accessResult := ber.NewChoice("AccessResult",
		req("failure", implicit(0, ber.Named("DataAccessError", integer))),
		req("success", data),
	)
	accessResult.Hook = hookAccessResult

	// AlternateAccess
	alternateAccess := ber.NewSequenceOf("AlternateAccess", nil)
	indexRange := func(lowTag, countTag uint32) *ber.Type {
		return ber.NewSequence("indexRange",
			req("lowIndex", implicit(lowTag, integer)),
			req("numberOfElements", implicit(countTag, integer)),
		)
	}
	selection := ber.NewChoice("AlternateAccessSelection",
		req("selectAlternateAccess", implicit(0, ber.NewSequence("selectAlternateAccess",
			req("accessSelection", ber.NewChoice("accessSelection",
				req("component", implicit(0, identifier)),
				req("index", implicit(1, integer)),
				req("indexRange", implicit(2, indexRange(0, 1))),
				req("allElements", implicit(3, null)),
			)),
			req("alternateAccess", alternateAccess),
		))),
		req("selectAccess", ber.NewChoice("selectAccess",
			req("component", implicit(1, identifier)),
			req("index", implicit(2, integer)),
			req("indexRange", implicit(3, indexRange(0, 1))),
			req("allElements", implicit(4, null)),
		)),
	)
	alternateAccess.Elem = ber.NewChoice("alternateAccessElement",
		req("unnamed", selection),
		req("named", implicit(5, ber.NewSequence("named",
			req("componentName", implicit(0, identifier)),
			req("access", selection),
		))),
	)

	// VariableSpecification и ScatteredAccessDescription
	variableSpec := ber.NewChoice("VariableSpecification")
	scattered := ber.NewSequenceOf("ScatteredAccessDescription", ber.NewSequence("scatteredAccess",
		opt("componentName", implicit(0, identifier)),
		req("variableSpecification", explicit(1, variableSpec)),
		opt("alternateAccess", implicit(2, alternateAccess)),
	))
	variableSpec.Alternatives = []ber.Field{
		req("name", explicit(0, objectName)),
		req("address", explicit(1, address)),
		req("variableDescription", implicit(2, ber.NewSequence("variableDescription",
			req("address", address),
			req("typeSpecification", typeSpec),
		))),
		req("scatteredAccessDescription", implicit(3, scattered)),
		req("invalidated", implicit(4, null)),
	}

	variable := ber.NewSequence("variable",
		req("variableSpecification", variableSpec),
		opt("alternateAccess", implicit(5, alternateAccess)),
	)
	listOfVariable := ber.NewSequenceOf("listOfVariable", variable)

	variableAccessSpec := ber.NewChoice("VariableAccessSpecification",
		req("listOfVariable", implicit(0, listOfVariable)),
		req("variableListName", explicit(1, listName)),
	)

	objectClass := ber.NewChoice("ObjectClass",
		req("basicObjectClass", implicit(0, integer)),
		req("csObjectClass", implicit(1, integer)),
	)
	objectClass.Hook = hookObjectClass

	objectScope := ber.NewChoice("objectScope",
		req("vmdSpecific", implicit(0, null)),
		req("domainSpecific", implicit(1, identifier)),
		req("aaSpecific", implicit(2, null)),
	)
	objectScope.Hook = hookObjectScope

	fileName := ber.NewSequenceOf("FileName", graphic)
	fileAttributes := ber.NewSequence("FileAttributes",
		req("sizeOfFile", implicit(0, integer)),
		opt("lastModified", implicit(1, genTime)),
	)

	statusResponse := ber.NewSequence("Status-Response",
		req("vmdLogicalStatus", implicit(0, integer)),
		req("vmdPhysicalStatus", implicit(1, integer)),
		opt("localDetail", implicit(2, bitString)),
	)

	// ServiceError
	errorClass := ber.NewChoice("errorClass")
	for i, name := range errorClassNames {
		errorClass.Alternatives = append(errorClass.Alternatives, req(name, implicit(uint32(i), integer)))
	}
	serviceError := ber.NewSequence("ServiceError",
		req("errorClass", explicit(0, errorClass)),
		opt("additionalCode", implicit(1, integer)),
		opt("additionalDescription", implicit(2, visible)),
		opt("serviceSpecificInformation", anyTagged("serviceSpecificInformation", 3)),
	)

	// Запросы подтверждаемых услуг
	requests := make([]ber.Field, ConfirmedServiceCount)
	for i := range requests {
		s := Service(i)
		requests[i] = req(s.String(), anyTagged(s.String(), uint32(i)))
	}
	setRequest := func(s Service, t *ber.Type) {
		requests[s] = req(s.String(), t)
	}
	setRequest(Status, implicit(uint32(Status), ber.Named("extendedDerivation", boolean)))
	setRequest(GetNameList, implicit(uint32(GetNameList), ber.NewSequence("GetNameList-Request",
		req("objectClass", explicit(0, objectClass)),
		req("objectScope", explicit(1, objectScope)),
		opt("continueAfter", implicit(2, identifier)),
	)))
	setRequest(Identify, implicit(uint32(Identify), null))
	setRequest(Rename, implicit(uint32(Rename), ber.NewSequence("Rename-Request",
		req("objectClass", explicit(0, objectClass)),
		req("currentName", explicit(1, objectName)),
		req("newIdentifier", implicit(2, identifier)),
	)))
	setRequest(Read, implicit(uint32(Read), ber.NewSequence("Read-Request",
		opt("specificationWithResult", implicit(0, boolean)),
		req("variableAccessSpecification", explicit(1, variableAccessSpec)),
	)))
	setRequest(Write, implicit(uint32(Write), ber.NewSequence("Write-Request",
		req("variableAccessSpecification", variableAccessSpec),
		req("listOfData", implicit(0, ber.NewSequenceOf("listOfData", data))),
	)))
	setRequest(GetVariableAccessAttributes, explicit(uint32(GetVariableAccessAttributes), ber.NewChoice("GetVariableAccessAttributes-Request",
		req("name", explicit(0, objectName)),
		req("address", explicit(1, address)),
	)))
	setRequest(DefineNamedVariableList, implicit(uint32(DefineNamedVariableList), ber.NewSequence("DefineNamedVariableList-Request",
		req("variableListName", listName),
		req("listOfVariable", implicit(0, listOfVariable)),
	)))
	setRequest(GetNamedVariableListAttributes, explicit(uint32(GetNamedVariableListAttributes), listName))
	setRequest(DeleteNamedVariableList, implicit(uint32(DeleteNamedVariableList), ber.NewSequence("DeleteNamedVariableList-Request",
		opt("scopeOfDelete", implicit(0, integer)),
		opt("listOfVariableListName", implicit(1, ber.NewSequenceOf("listOfVariableListName", listName))),
		opt("domainName", implicit(2, identifier)),
	)))
	setRequest(ObtainFile, implicit(uint32(ObtainFile), ber.NewSequence("ObtainFile-Request",
		opt("sourceFileServer", anyTagged("sourceFileServer", 0)),
		req("sourceFile", implicit(1, fileName)),
		req("destinationFile", implicit(2, fileName)),
	)))
	setRequest(ReadJournal, implicit(uint32(ReadJournal), ber.NewSequence("ReadJournal-Request",
		req("journalName", explicit(0, objectName)),
		opt("rangeStartSpecification", anyTagged("rangeStartSpecification", 1)),
		opt("rangeStopSpecification", anyTagged("rangeStopSpecification", 2)),
		opt("listOfVariables", implicit(4, ber.NewSequenceOf("listOfVariables", visible))),
		opt("entryToStartAfter", anyTagged("entryToStartAfter", 5)),
	)))
	setRequest(FileOpen, implicit(uint32(FileOpen), ber.NewSequence("FileOpen-Request",
		req("fileName", implicit(0, fileName)),
		req("initialPosition", implicit(1, integer)),
	)))
	setRequest(FileRead, implicit(uint32(FileRead), ber.Named("frsmID", integer)))
	setRequest(FileClose, implicit(uint32(FileClose), ber.Named("frsmID", integer)))
	setRequest(FileDelete, implicit(uint32(FileDelete), fileName))
	setRequest(FileDirectory, implicit(uint32(FileDirectory), ber.NewSequence("FileDirectory-Request",
		opt("fileSpecification", implicit(0, fileName)),
		opt("continueAfter", implicit(1, fileName)),
	)))

	// Ответы подтверждаемых услуг
	responses := make([]ber.Field, ConfirmedServiceCount)
	for i := range responses {
		s := Service(i)
		responses[i] = req(s.String(), anyTagged(s.String(), uint32(i)))
	}
	setResponse := func(s Service, t *ber.Type) {
		responses[s] = req(s.String(), t)
	}
	setResponse(Status, implicit(uint32(Status), statusResponse))
	setResponse(GetNameList, implicit(uint32(GetNameList), ber.NewSequence("GetNameList-Response",
		req("listOfIdentifier", implicit(0, ber.NewSequenceOf("listOfIdentifier", identifier))),
		opt("moreFollows", implicit(1, boolean)),
	)))
	setResponse(Identify, implicit(uint32(Identify), ber.NewSequence("Identify-Response",
		req("vendorName", implicit(0, visible)),
		req("modelName", implicit(1, visible)),
		req("revision", implicit(2, visible)),
		opt("listOfAbstractSyntaxes", implicit(3, ber.NewSequenceOf("listOfAbstractSyntaxes", oid))),
	)))
	setResponse(Rename, implicit(uint32(Rename), null))
	setResponse(Read, implicit(uint32(Read), ber.NewSequence("Read-Response",
		opt("variableAccessSpecification", explicit(0, variableAccessSpec)),
		req("listOfAccessResult", implicit(1, ber.NewSequenceOf("listOfAccessResult", accessResult))),
	)))
	writeResult := ber.NewChoice("writeResult",
		req("failure", implicit(0, ber.Named("DataAccessError", integer))),
		req("success", implicit(1, null)),
	)
	writeResult.Hook = hookAccessResult
	setResponse(Write, implicit(uint32(Write), ber.NewSequenceOf("Write-Response", writeResult)))
	setResponse(GetVariableAccessAttributes, implicit(uint32(GetVariableAccessAttributes), ber.NewSequence("GetVariableAccessAttributes-Response",
		req("mmsDeletable", implicit(0, boolean)),
		opt("address", explicit(1, address)),
		req("typeSpecification", explicit(2, typeSpec)),
	)))
	setResponse(DefineNamedVariableList, implicit(uint32(DefineNamedVariableList), null))
	setResponse(GetNamedVariableListAttributes, implicit(uint32(GetNamedVariableListAttributes), ber.NewSequence("GetNamedVariableListAttributes-Response",
		req("mmsDeletable", implicit(0, boolean)),
		req("listOfVariable", implicit(1, listOfVariable)),
	)))
	setResponse(DeleteNamedVariableList, implicit(uint32(DeleteNamedVariableList), ber.NewSequence("DeleteNamedVariableList-Response",
		req("numberMatched", implicit(0, integer)),
		req("numberDeleted", implicit(1, integer)),
	)))
	setResponse(ObtainFile, implicit(uint32(ObtainFile), null))
	setResponse(ReadJournal, implicit(uint32(ReadJournal), ber.NewSequence("ReadJournal-Response",
		req("listOfJournalEntry", anyTagged("listOfJournalEntry", 0)),
		opt("moreFollows", implicit(1, boolean)),
	)))
	setResponse(FileOpen, implicit(uint32(FileOpen), ber.NewSequence("FileOpen-Response",
		req("frsmID", implicit(0, integer)),
		req("fileAttributes", implicit(1, fileAttributes)),
	)))
	setResponse(FileRead, implicit(uint32(FileRead), ber.NewSequence("FileRead-Response",
		req("fileData", implicit(0, octets)),
		opt("moreFollows", implicit(1, boolean)),
	)))
	setResponse(FileClose, implicit(uint32(FileClose), null))
	setResponse(FileDelete, implicit(uint32(FileDelete), null))
	setResponse(FileDirectory, implicit(uint32(FileDirectory), ber.NewSequence("FileDirectory-Response",
		req("listOfDirectoryEntry", explicit(0, ber.NewSequenceOf("listOfDirectoryEntry", ber.NewSequence("DirectoryEntry",
			req("fileName", implicit(0, fileName)),
			req("fileAttributes", implicit(1, fileAttributes)),
		)))),
		opt("moreFollows", implicit(1, boolean)),
	)))

	confirmedRequest := ber.NewSequence("Confirmed-RequestPDU",
		req("invokeID", integer),
		opt("listOfModifier", ber.NewSequenceOf("listOfModifier", ber.NewAny("Modifier"))),
		req("service", ber.NewChoice("ConfirmedServiceRequest", requests...)),
		opt("service-ext", anyTagged("service-ext", 79)),
	)
	confirmedResponse := ber.NewSequence("Confirmed-ResponsePDU",
		req("invokeID", integer),
		req("service", ber.NewChoice("ConfirmedServiceResponse", responses...)),
		opt("service-ext", anyTagged("service-ext", 79)),
	)

	unconfirmed := ber.NewSequence("Unconfirmed-PDU",
		req("service", ber.NewChoice("UnconfirmedService",
			req("informationReport", implicit(0, ber.NewSequence("InformationReport",
				req("variableAccessSpecification", variableAccessSpec),
				req("listOfAccessResult", implicit(0, ber.NewSequenceOf("listOfAccessResult", accessResult))),
			))),
			req("unsolicitedStatus", implicit(1, statusResponse)),
			req("eventNotification", anyTagged("eventNotification", 2)),
		)),
		opt("service-ext", anyTagged("service-ext", 79)),
	)

	rejectReason := ber.NewChoice("rejectReason")
	for i, name := range rejectReasonNames {
		rejectReason.Alternatives = append(rejectReason.Alternatives, req(name, implicit(uint32(i+1), integer)))
	}

	initRequestDetail := ber.NewSequence("InitRequestDetail",
		req("proposedVersionNumber", implicit(0, integer)),
		req("proposedParameterCBB", implicit(1, ber.NewBitString("ParameterSupportOptions", parameterCBBNames[:]...))),
		req("servicesSupportedCalling", implicit(2, ber.NewBitString("ServiceSupportOptions", serviceNames[:]...))),
	)
	initiateRequest := ber.NewSequence("Initiate-RequestPDU",
		opt("localDetailCalling", implicit(0, integer)),
		req("proposedMaxServOutstandingCalling", implicit(1, integer)),
		req("proposedMaxServOutstandingCalled", implicit(2, integer)),
		opt("proposedDataStructureNestingLevel", implicit(3, integer)),
		req("mmsInitRequestDetail", implicit(4, initRequestDetail)),
	)
	initResponseDetail := ber.NewSequence("InitResponseDetail",
		req("negotiatedVersionNumber", implicit(0, integer)),
		req("negotiatedParameterCBB", implicit(1, ber.NewBitString("ParameterSupportOptions", parameterCBBNames[:]...))),
		req("servicesSupportedCalled", implicit(2, ber.NewBitString("ServiceSupportOptions", serviceNames[:]...))),
	)
	initiateResponse := ber.NewSequence("Initiate-ResponsePDU",
		opt("localDetailCalled", implicit(0, integer)),
		req("negotiatedMaxServOutstandingCalling", implicit(1, integer)),
		req("negotiatedMaxServOutstandingCalled", implicit(2, integer)),
		opt("negotiatedDataStructureNestingLevel", implicit(3, integer)),
		req("mmsInitResponseDetail", implicit(4, initResponseDetail)),
	)

	pduAlternatives := []ber.Field{
		KindConfirmedRequest: req(KindConfirmedRequest.String(), implicit(0, confirmedRequest)),
		KindConfirmedResponse: req(KindConfirmedResponse.String(), implicit(1, confirmedResponse)),
		KindConfirmedError: req(KindConfirmedError.String(), implicit(2, ber.NewSequence("Confirmed-ErrorPDU",
			req("invokeID", implicit(0, integer)),
			opt("modifierPosition", implicit(1, integer)),
			req("serviceError", implicit(2, serviceError)),
		))),
		KindUnconfirmed: req(KindUnconfirmed.String(), implicit(3, unconfirmed)),
		KindReject: req(KindReject.String(), implicit(4, ber.NewSequence("RejectPDU",
			opt("originalInvokeID", implicit(0, integer)),
			req("rejectReason", rejectReason),
		))),
		KindCancelRequest:  req(KindCancelRequest.String(), implicit(5, ber.Named("invokeID", integer))),
		KindCancelResponse: req(KindCancelResponse.String(), implicit(6, ber.Named("invokeID", integer))),
		KindCancelError: req(KindCancelError.String(), implicit(7, ber.NewSequence("Cancel-ErrorPDU",
			req("originalInvokeID", implicit(0, integer)),
			req("serviceError", implicit(1, serviceError)),
		))),
		KindInitiateRequest:  req(KindInitiateRequest.String(), implicit(8, initiateRequest)),
		KindInitiateResponse: req(KindInitiateResponse.String(), implicit(9, initiateResponse)),
		KindInitiateError:    req(KindInitiateError.String(), implicit(10, serviceError)),
		KindConcludeRequest:  req(KindConcludeRequest.String(), implicit(11, null)),
		KindConcludeResponse: req(KindConcludeResponse.String(), implicit(12, null)),
		KindConcludeError:    req(KindConcludeError.String(), implicit(13, serviceError)),
	}

	return &mmsGrammar{
		pdu:                 ber.NewChoice("MMSpdu", pduAlternatives...),
		typeSpecification:   typeSpec,
		data:                data,
		variableSpec:        variableSpec,
		alternateAccess:     alternateAccess,
		confirmedRequest:    confirmedRequest,
		confirmedResponse:   confirmedResponse,
		initiateRequestPDU:  initiateRequest,
		initiateResponsePDU: initiateResponse,
	}
}

var errorClassNames = [...]string{
	"vmd-state", "application-reference", "definition", "resource", "service",
	"service-preempt", "time-resolution", "access", "initiate", "conclude",
	"cancel", "file", "others",
}

// rejectReasonNames альтернативы rejectReason начиная с тега [1]
var rejectReasonNames = [...]string{
	"confirmed-requestPDU", "confirmed-responsePDU", "confirmed-errorPDU",
	"unconfirmedPDU", "pdu-error", "cancel-requestPDU", "cancel-responsePDU",
	"cancel-errorPDU", "conclude-requestPDU", "conclude-responsePDU",
	"conclude-errorPDU",
}

// Хуки грамматики заполняют DecodeContext

func hookObjectName(ctx *ber.Context, v *ber.Value) {
	dc := private(ctx)
	scope, domain, item := objectNameParts(v)
	switch scope {
	case ScopeDomain:
		dc.setObjectName(domain, item)
	case ScopeVMD, ScopeAA:
		if dc.VMDName == "" {
			dc.VMDName = item
		}
	}
}

func hookListName(ctx *ber.Context, v *ber.Value) {
	hookObjectName(ctx, v)
	dc := private(ctx)
	if dc.VariableListName == "" {
		dc.VariableListName = FormatObjectName(v)
	}
}

func hookObjectClass(ctx *ber.Context, v *ber.Value) {
	dc := private(ctx)
	if sel := v.Selected(); sel != nil && sel.Name == "basicObjectClass" {
		dc.ObjectClass = int(sel.Int)
		dc.HasObjectClass = true
	}
}

func hookObjectScope(ctx *ber.Context, v *ber.Value) {
	dc := private(ctx)
	sel := v.Selected()
	if sel == nil {
		return
	}
	switch sel.Name {
	case "vmdSpecific":
		dc.ObjectScope = ScopeVMD
	case "domainSpecific":
		dc.ObjectScope = ScopeDomain
		if dc.DomainID == "" {
			dc.DomainID = sel.Str
		}
	case "aaSpecific":
		dc.ObjectScope = ScopeAA
	}
}

func hookData(ctx *ber.Context, _ *ber.Value) {
	private(ctx).DataCount++
}

func hookAccessResult(ctx *ber.Context, v *ber.Value) {
	dc := private(ctx)
	dc.AccessResultCount++
	if sel := v.Selected(); sel != nil && sel.Name == "failure" {
		dc.FailureCount++
	}
}

// objectNameParts разбирает значение ObjectName. v может быть самим CHOICE
// или явным тегом вокруг него.
func objectNameParts(v *ber.Value) (ObjectScope, string, string) {
	sel := v.Unwrap()
	if sel == nil {
		return ScopeNone, "", ""
	}
	switch sel.Name {
	case nameVMDSpecific:
		return ScopeVMD, "", sel.Str
	case nameDomainSpecific:
		return ScopeDomain, str(sel.Field("domainId")), str(sel.Field("itemId"))
	case nameAASpecific:
		return ScopeAA, "", sel.Str
	}
	return ScopeNone, "", ""
}

// FormatObjectName возвращает имя объекта в виде "domain/item" для
// доменных имён и "item" для остальных.
func FormatObjectName(v *ber.Value) string {
	scope, domain, item := objectNameParts(v)
	if scope == ScopeDomain {
		return domain + "/" + item
	}
	return item
}

func str(v *ber.Value) string {
	if v == nil {
		return ""
	}
	return v.Str
}
