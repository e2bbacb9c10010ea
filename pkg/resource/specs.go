package resource

// NamespaceSpec is the spec of a Namespace.
type NamespaceSpec struct {
	KafkaUser       string   `json:"kafkaUser,omitempty"`
	ConnectClusters []string `json:"connectClusters,omitempty"`
	Contacts        []string `json:"contacts,omitempty"`
}

// SubjectType is the kind of principal a RoleBinding targets.
type SubjectType string

const (
	SubjectGroup SubjectType = "GROUP"
	SubjectUser  SubjectType = "USER"
)

// Role is a flat list of verbs over resource types.
type Role struct {
	ResourceTypes []string `json:"resourceTypes"`
	ResourceNames []string `json:"resourceNames,omitempty"`
	Verbs         []string `json:"verbs"`
}

// Subject is the grantee of a RoleBinding.
type Subject struct {
	SubjectType SubjectType `json:"subjectType"`
	SubjectName string      `json:"subjectName"`
}

// RoleBindingSpec is the spec of a RoleBinding.
type RoleBindingSpec struct {
	Role    Role    `json:"role"`
	Subject Subject `json:"subject"`
}

// ACLResourceType is the type of object an access control entry covers.
type ACLResourceType string

const (
	ACLTopic           ACLResourceType = "TOPIC"
	ACLGroup           ACLResourceType = "GROUP"
	ACLConnect         ACLResourceType = "CONNECT"
	ACLConnectCluster  ACLResourceType = "CONNECT_CLUSTER"
	ACLSchema          ACLResourceType = "SCHEMA"
	ACLTransactionalID ACLResourceType = "TRANSACTIONAL_ID"
)

// ACLResourceTypes lists every accepted ACLResourceType.
var ACLResourceTypes = []ACLResourceType{
	ACLTopic, ACLGroup, ACLConnect, ACLConnectCluster, ACLSchema, ACLTransactionalID,
}

// PatternType selects how an entry's resource string is matched.
type PatternType string

const (
	PatternLiteral  PatternType = "LITERAL"
	PatternPrefixed PatternType = "PREFIXED"
)

// Permission is an access level. READ < WRITE < OWNER.
type Permission string

const (
	PermissionRead  Permission = "READ"
	PermissionWrite Permission = "WRITE"
	PermissionOwner Permission = "OWNER"
)

// AccessControlEntrySpec is the spec of an AccessControlEntry.
type AccessControlEntrySpec struct {
	ResourceType        ACLResourceType `json:"resourceType"`
	Resource            string          `json:"resource"`
	ResourcePatternType PatternType     `json:"resourcePatternType"`
	Permission          Permission      `json:"permission"`
	GrantedTo           string          `json:"grantedTo"`
}

// ResourceQuotaSpec maps quota keys to limits, e.g. "count/topics": "10".
type ResourceQuotaSpec map[string]string

// TopicSpec is the spec of a Topic.
type TopicSpec struct {
	Partitions        int               `json:"partitions"`
	ReplicationFactor int               `json:"replicationFactor"`
	Configs           map[string]string `json:"configs,omitempty"`
}

// ConnectorSpec is the spec of a Connector.
type ConnectorSpec struct {
	ConnectCluster string            `json:"connectCluster"`
	Config         map[string]string `json:"config"`
}

// SchemaReference points at another registered subject.
type SchemaReference struct {
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Version int    `json:"version"`
}

// SchemaSpec is the spec of a Schema. The resource name is the subject.
type SchemaSpec struct {
	Schema        string            `json:"schema"`
	SchemaType    string            `json:"schemaType,omitempty"`
	Compatibility string            `json:"compatibility,omitempty"`
	References    []SchemaReference `json:"references,omitempty"`
}
