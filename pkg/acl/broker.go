package acl

import (
	"github.com/twmb/franz-go/pkg/kmsg"

	"github.com/michelin/ns4kafka-go/pkg/resource"
	"github.com/michelin/ns4kafka-go/pkg/store"
)

// brokerOperations lists, per Kafka-native resource type and permission,
// the broker operations an entry expands to. Types missing here (CONNECT,
// CONNECT_CLUSTER, SCHEMA) have no broker representation.
var brokerOperations = map[resource.ACLResourceType]map[resource.Permission][]kmsg.ACLOperation{
	resource.ACLTopic: {
		resource.PermissionOwner: {kmsg.ACLOperationRead, kmsg.ACLOperationWrite, kmsg.ACLOperationDescribeConfigs},
		resource.PermissionWrite: {kmsg.ACLOperationWrite, kmsg.ACLOperationDescribeConfigs},
		resource.PermissionRead:  {kmsg.ACLOperationRead, kmsg.ACLOperationDescribeConfigs},
	},
	resource.ACLGroup: {
		resource.PermissionOwner: {kmsg.ACLOperationRead},
	},
	resource.ACLTransactionalID: {
		resource.PermissionOwner: {kmsg.ACLOperationWrite, kmsg.ACLOperationDescribe},
	},
}

var brokerResourceTypes = map[resource.ACLResourceType]kmsg.ACLResourceType{
	resource.ACLTopic:           kmsg.ACLResourceTypeTopic,
	resource.ACLGroup:           kmsg.ACLResourceTypeGroup,
	resource.ACLTransactionalID: kmsg.ACLResourceTypeTransactionalId,
}

var brokerPatternTypes = map[resource.PatternType]kmsg.ACLResourcePatternType{
	resource.PatternLiteral:  kmsg.ACLResourcePatternTypeLiteral,
	resource.PatternPrefixed: kmsg.ACLResourcePatternTypePrefixed,
}

// BrokerBindings renders entries as broker ACL creations for kafkaUser,
// the Kafka principal of the beneficiary namespace.
func BrokerBindings(entries []store.AccessControlEntry, kafkaUser string) []kmsg.CreateACLsRequestCreation {
	var out []kmsg.CreateACLsRequestCreation
	if kafkaUser == "" {
		return out
	}
	for _, e := range entries {
		rt, ok := brokerResourceTypes[e.Spec.ResourceType]
		if !ok {
			continue
		}
		pt, ok := brokerPatternTypes[e.Spec.ResourcePatternType]
		if !ok {
			continue
		}
		for _, op := range brokerOperations[e.Spec.ResourceType][e.Spec.Permission] {
			c := kmsg.NewCreateACLsRequestCreation()
			c.ResourceType = rt
			c.ResourceName = e.Spec.Resource
			c.ResourcePatternType = pt
			c.Operation = op
			c.Principal = "User:" + kafkaUser
			c.Host = "*"
			c.PermissionType = kmsg.ACLPermissionTypeAllow
			out = append(out, c)
		}
	}
	return out
}

// BrokerBinding is the JSON view of a broker ACL creation.
type BrokerBinding struct {
	ResourceType string `json:"resourceType"`
	ResourceName string `json:"resourceName"`
	PatternType  string `json:"patternType"`
	Operation    string `json:"operation"`
	Principal    string `json:"principal"`
	Host         string `json:"host"`
	Permission   string `json:"permission"`
}

func toBrokerBinding(c kmsg.CreateACLsRequestCreation) BrokerBinding {
	return BrokerBinding{
		ResourceType: c.ResourceType.String(),
		ResourceName: c.ResourceName,
		PatternType:  c.ResourcePatternType.String(),
		Operation:    c.Operation.String(),
		Principal:    c.Principal,
		Host:         c.Host,
		Permission:   c.PermissionType.String(),
	}
}
