package editor

// DefaultSample seeds a new buffer. It deliberately carries LaTeX that benefits
// from a repair pass.
const DefaultSample = `## 非气象回波判识

设雷达反射率因子原始观测值为 $Z_{\text{obs}}(r,\theta,\phi,t)$，其中 $(r,\theta,\phi)$ 分别为距离、方位角和仰角，$t$ 为时间。

通过构建非气象回波判识函数：

$$
\mathcal{F}_{\text{non-met}}(Z_{\text{obs}}, \nabla_{\text{spatial}} Z, \nabla_{\text{temporal}} Z, \rho_{HV}, Z_{DR}) = \begin{cases}
1, & \text{非气象回波} \\
0, & \text{气象回波}
\end{cases}
$$

其中 $\nabla_{\text{spatial}} Z$ 和 $\nabla_{\text{temporal}} Z$ 分别表示空间梯度和时间梯度，$\rho_{HV}$ 为相关系数，$Z_{DR}$ 为差分反射率因子。`
