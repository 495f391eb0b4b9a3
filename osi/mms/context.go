package mms

// ObjectScope область имён в GetNameList
type ObjectScope int

const (
	ScopeNone ObjectScope = iota
	ScopeVMD
	ScopeDomain
	ScopeAA
)

func (s ObjectScope) String() string {
	switch s {
	case ScopeVMD:
		return "vmd-specific"
	case ScopeDomain:
		return "domain-specific"
	case ScopeAA:
		return "aa-specific"
	}
	return "none"
}

// Классы объектов basicObjectClass
const (
	ObjectClassNamedVariable     = 0
	ObjectClassScatteredAccess   = 1
	ObjectClassNamedVariableList = 2
	ObjectClassNamedType         = 3
	ObjectClassSemaphore         = 4
	ObjectClassEventCondition    = 5
	ObjectClassEventAction       = 6
	ObjectClassEventEnrollment   = 7
	ObjectClassJournal           = 8
	ObjectClassDomain            = 9
	ObjectClassProgramInvocation = 10
	ObjectClassOperatorStation   = 11
)

// DecodeContext рабочие данные разбора одного PDU. Заполняется хуками
// грамматики по мере обхода дерева и читается классификатором IEC 61850.
// Живёт ровно один вызов Decode.
type DecodeContext struct {
	Service    Service
	HasService bool

	ObjectClass    int
	HasObjectClass bool
	ObjectScope    ObjectScope

	// Первое доменное имя объекта в PDU
	DomainID string
	ItemID   string
	// Первое vmd- или aa-специфичное имя объекта
	VMDName string

	VariableListName string

	DataCount         int
	AccessResultCount int
	FailureCount      int
}

func (c *DecodeContext) setService(s Service) {
	if c.HasService {
		return
	}
	c.Service = s
	c.HasService = true
}

func (c *DecodeContext) setObjectName(domainID, itemID string) {
	if c.DomainID != "" || c.ItemID != "" {
		return
	}
	c.DomainID = domainID
	c.ItemID = itemID
}
