package domain

// Role 表示连接或用户在课堂中的身份。
type Role string

const (
	RoleUnset   Role = ""        // 连接刚建立，尚未声明身份
	RoleTeacher Role = "teacher" // 主讲教师
	RoleStudent Role = "student" // 听课学生
)

// Valid 判断是否为可注册的用户角色 (unset 不可注册)。
func (r Role) Valid() bool {
	return r == RoleTeacher || r == RoleStudent
}

func (r Role) String() string {
	if r == RoleUnset {
		return "unset"
	}
	return string(r)
}
